package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dkravets/keychat/internal/models"
)

// Full-width characters chat clients love to auto-convert, with their
// half-width equivalents at matching positions.
const (
	fullWidthChars = "０１２３４５６７８９＋－＝／＼（）［］｛｝＜＞｜＆＊＠＄％＾＿｀～：；＂＇，．？！　"
	halfWidthChars = "0123456789+-=/\\()[]{}<>|&*@$%^_`~:;\"',.?! "
)

var fullToHalf = func() map[rune]rune {
	full := []rune(fullWidthChars)
	half := []rune(halfWidthChars)
	m := make(map[rune]rune, len(full))
	for i, r := range full {
		m[r] = half[i]
	}
	return m
}()

var (
	codeFenceOpen  = regexp.MustCompile("(?m)^```[A-Za-z0-9]*\n?")
	codeFenceClose = regexp.MustCompile("(?m)\n?```$")
	leadingSymbols = regexp.MustCompile(`^[\x{1F300}-\x{1F9FF}\x{2600}-\x{27BF}]+[ \t]*`)
	zeroWidth      = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "")
	blankRuns      = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes pasted long-text bodies: code-fence delimiters and
// leading emoji runs are stripped, full-width punctuation and digits are
// converted to half-width, zero-width characters removed, and runs of
// blank lines collapsed. Idempotent, since users edit and resend.
func CleanText(t string) string {
	r := strings.ReplaceAll(t, "\r\n", "\n")
	r = strings.ReplaceAll(r, "\r", "\n")

	r = codeFenceOpen.ReplaceAllString(r, "")
	r = codeFenceClose.ReplaceAllString(r, "")

	lines := strings.Split(r, "\n")
	for i, line := range lines {
		lines[i] = leadingSymbols.ReplaceAllString(line, "")
	}
	r = strings.Join(lines, "\n")

	r = strings.Map(func(c rune) rune {
		if h, ok := fullToHalf[c]; ok {
			return h
		}
		return c
	}, r)

	r = zeroWidth.Replace(r)
	r = blankRuns.ReplaceAllString(r, "\n\n")
	return strings.TrimSpace(r)
}

const dateLayout = "2006-01-02"

var dateRe = regexp.MustCompile(`^(?:(\d{4})[-/])?(\d{1,2})[-/](\d{1,2})$`)

// ParseDate parses YYYY-MM-DD, YYYY/MM/DD, MM-DD and MM/DD. Without a
// year the current one is assumed, rolling forward a year if the date has
// already passed. Returns the normalized YYYY-MM-DD form.
func ParseDate(now time.Time, text string) (string, bool) {
	m := dateRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}

	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	year := now.Year()
	hasYear := m[1] != ""
	if hasYear {
		year, _ = strconv.Atoi(m[1])
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	if d.Year() != year || d.Month() != time.Month(month) || d.Day() != day {
		return "", false
	}

	if !hasYear {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if d.Before(today) {
			d = time.Date(year+1, time.Month(month), day, 0, 0, 0, 0, now.Location())
			if d.Month() != time.Month(month) || d.Day() != day {
				return "", false
			}
		}
	}

	return d.Format(dateLayout), true
}

// DaysUntil computes calendar days between now and a stored expiry date,
// as the ceiling of the remaining time in days. Yesterday is -1, today 0.
func DaysUntil(now time.Time, date string) (int, bool) {
	d, err := time.ParseInLocation(dateLayout, date, now.Location())
	if err != nil {
		return 0, false
	}
	diff := d.Sub(now).Hours() / 24
	days := int(diff)
	if diff > float64(days) {
		days++
	}
	return days, true
}

// ExpiryInfo renders the expiry status line appended to detail views.
func ExpiryInfo(now time.Time, expiresAt *string) string {
	if expiresAt == nil {
		return ""
	}
	days, ok := DaysUntil(now, *expiresAt)
	if !ok {
		return ""
	}
	switch {
	case days < 0:
		return fmt.Sprintf("\n⚠️ 已过期 %d 天", -days)
	case days == 0:
		return "\n🔴 今天到期！"
	case days <= 3:
		return fmt.Sprintf("\n🔴 %d 天后到期", days)
	case days <= 7:
		return fmt.Sprintf("\n🟡 %d 天后到期", days)
	case days <= 30:
		return fmt.Sprintf("\n🟢 %d 天后到期", days)
	default:
		return "\n📅 " + *expiresAt
	}
}

// expiryIcon is the short marker used in list and expiring views.
func expiryIcon(days int) string {
	switch {
	case days <= 0:
		return "⚠️"
	case days <= 3:
		return "🔴"
	case days <= 7:
		return "🟡"
	default:
		return "🟢"
	}
}

// RenderReminder buckets all rows due within a week into the shared bands
// and renders the digest message. Returns "" when nothing qualifies.
func RenderReminder(now time.Time, rows []models.Secret) string {
	var expired, today, tomorrow, within3, within7 []string

	for i := range rows {
		if rows[i].ExpiresAt == nil {
			continue
		}
		days, ok := DaysUntil(now, *rows[i].ExpiresAt)
		if !ok {
			continue
		}
		line := "• " + rows[i].Name
		switch {
		case days < 0:
			expired = append(expired, line)
		case days == 0:
			today = append(today, line)
		case days == 1:
			tomorrow = append(tomorrow, line)
		case days <= 3:
			within3 = append(within3, line)
		case days <= 7:
			within7 = append(within7, line)
		}
	}

	var b strings.Builder
	appendGroup := func(header string, lines []string) {
		if len(lines) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(header)
		b.WriteString("\n")
		b.WriteString(strings.Join(lines, "\n"))
	}

	appendGroup("⚠️ 已过期：", expired)
	appendGroup("🔴 今天：", today)
	appendGroup("🔴 明天：", tomorrow)
	appendGroup("🟡 3天内：", within3)
	appendGroup("🟢 7天内：", within7)

	if b.Len() == 0 {
		return ""
	}
	return "⏰ 到期提醒\n\n" + b.String()
}
