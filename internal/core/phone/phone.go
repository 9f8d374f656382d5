package phone

import (
	"strings"
)

const (
	// CountryCode は想定する国番号 (インドネシア) です。
	CountryCode = "62"
	trunkPrefix = "0"

	minNationalDigits = 9
	maxNationalDigits = 13
)

// transport 側が付与する宛先サフィックス。
var channelSuffixes = []string{"@c.us", "@s.whatsapp.net"}

// Key は電話番号の正規化済み識別子と照合用のバリエーションです。
type Key struct {
	// Plain は国番号形式 (62...) の数字列です。
	Plain string
	// Local は先頭 0 の国内形式です。
	Local string
	// Plus は "+" 付きの国際形式です。
	Plus string
	// Ambiguous は国番号形式に確定できなかったことを示します。
	Ambiguous bool
}

// Normalize は生の電話番号文字列を Key に変換します。
// 桁数が想定範囲外で国番号を確定できない場合は Plain のみを持つ曖昧な Key を返します。
func Normalize(raw string) Key {
	digits := stripDigits(trimChannelSuffix(strings.TrimSpace(raw)))
	if digits == "" {
		return Key{Ambiguous: true}
	}

	plain := digits
	if strings.HasPrefix(plain, trunkPrefix) {
		plain = CountryCode + plain[len(trunkPrefix):]
	}

	if !strings.HasPrefix(plain, CountryCode) {
		if len(plain) >= minNationalDigits && len(plain) <= maxNationalDigits {
			plain = CountryCode + plain
		} else {
			return Key{Plain: plain, Ambiguous: true}
		}
	}

	return Key{
		Plain: plain,
		Local: trunkPrefix + plain[len(CountryCode):],
		Plus:  "+" + plain,
	}
}

// Variants はストレージ照合に使う値を返します。曖昧な Key は Plain のみです。
func (k Key) Variants() []string {
	if k.Plain == "" {
		return nil
	}
	if k.Ambiguous {
		return []string{k.Plain}
	}
	return []string{k.Plain, k.Local, k.Plus}
}

// JID は送信先として使う "<digits>@c.us" 形式を返します。
func (k Key) JID() string {
	if k.Plain == "" {
		return ""
	}
	return k.Plain + channelSuffixes[0]
}

// IsZero は数字を一つも含まなかった入力かどうかを返します。
func (k Key) IsZero() bool {
	return k.Plain == ""
}

// Strip は保存値の比較用に "+", 空白, "-" を取り除きます。
func Strip(stored string) string {
	return strings.NewReplacer("+", "", " ", "", "-", "").Replace(stored)
}

// Matches は保存済みの電話番号がこの Key のいずれかのバリエーションと一致するかを返します。
func (k Key) Matches(stored string) bool {
	s := Strip(stored)
	if s == "" {
		return false
	}
	for _, v := range k.Variants() {
		if s == v {
			return true
		}
	}
	return false
}

// IsGroupJID はグループ会話の宛先かどうかを返します。
func IsGroupJID(jid string) bool {
	return strings.HasSuffix(jid, "@g.us")
}

func trimChannelSuffix(raw string) string {
	for _, suffix := range channelSuffixes {
		if strings.HasSuffix(raw, suffix) {
			return strings.TrimSuffix(raw, suffix)
		}
	}
	return raw
}

func stripDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
