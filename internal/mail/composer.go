package mail

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"

	domain "github.com/machikado-app/api/internal/domain"
)

const (
	defaultServiceName = "まちかど"
	defaultLocale      = "ja"

	jstOffsetSeconds = 9 * 60 * 60
)

var japanese = language.MustParse("ja")

// ComposerOption customises template rendering.
type ComposerOption func(*Composer)

// WithServiceName overrides the service name interpolated into every template.
func WithServiceName(name string) ComposerOption {
	return func(c *Composer) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			c.serviceName = trimmed
		}
	}
}

// WithLocale selects the template locale. Only Japanese is shipped; unknown
// or unsupported tags fall back to it.
func WithLocale(tag string) ComposerOption {
	return func(c *Composer) {
		parsed, err := language.Parse(strings.TrimSpace(tag))
		if err != nil {
			return
		}
		c.locale = parsed
	}
}

// WithTimeZone overrides the zone used when formatting event times.
func WithTimeZone(loc *time.Location) ComposerOption {
	return func(c *Composer) {
		if loc != nil {
			c.zone = loc
		}
	}
}

// Composer renders the Japanese plain-text notification templates. User
// supplied fields are stripped of markup before interpolation.
type Composer struct {
	serviceName string
	locale      language.Tag
	zone        *time.Location
	sanitizer   *bluemonday.Policy
}

// NewComposer constructs a template composer.
func NewComposer(opts ...ComposerOption) *Composer {
	zone, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		zone = time.FixedZone("JST", jstOffsetSeconds)
	}

	c := &Composer{
		serviceName: defaultServiceName,
		locale:      japanese,
		zone:        zone,
		sanitizer:   bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.locale != japanese {
		// Single shipped locale; anything else renders Japanese.
		c.locale = japanese
	}
	return c
}

// AdminNewUser announces a fresh registration to the administrator.
func (c *Composer) AdminNewUser(user domain.User) (string, string) {
	subject := fmt.Sprintf("【%s】新規ユーザー登録のお知らせ", c.serviceName)
	body := joinLines(
		"新しいユーザーが登録されました。",
		"",
		"お名前: "+c.clean(user.DisplayName),
		"メールアドレス: "+c.clean(user.Email),
		"登録日時: "+c.formatTime(user.CreatedAt),
		"",
		"管理画面から承認・却下の操作を行ってください。",
	)
	return subject, body
}

// AdminNewShop announces a fresh shop submission to the administrator.
func (c *Composer) AdminNewShop(owner domain.User, shop domain.Shop) (string, string) {
	subject := fmt.Sprintf("【%s】新規店舗登録のお知らせ", c.serviceName)
	body := joinLines(
		"新しい店舗が登録されました。",
		"",
		"店舗名: "+c.clean(shop.ShopName),
		"所在地: "+c.clean(shop.Address),
		"登録者: "+c.clean(owner.DisplayName),
		"登録日時: "+c.formatTime(shop.CreatedAt),
		"",
		"管理画面から承認・却下の操作を行ってください。",
	)
	return subject, body
}

// UserApproved notifies the account holder their registration was accepted.
func (c *Composer) UserApproved(user domain.User) (string, string) {
	subject := fmt.Sprintf("【%s】アカウント承認のお知らせ", c.serviceName)
	body := joinLines(
		c.clean(user.DisplayName)+" 様",
		"",
		"アカウントの登録が承認されました。",
		fmt.Sprintf("%sのすべての機能をご利用いただけます。", c.serviceName),
		"",
		"今後ともよろしくお願いいたします。",
	)
	return subject, body
}

// UserRejected notifies the account holder their registration was declined.
// An empty reason omits the reason block entirely.
func (c *Composer) UserRejected(user domain.User) (string, string) {
	subject := fmt.Sprintf("【%s】アカウント審査結果のお知らせ", c.serviceName)
	lines := []string{
		c.clean(user.DisplayName) + " 様",
		"",
		"誠に申し訳ございませんが、アカウントの登録は承認されませんでした。",
	}
	lines = append(lines, c.reasonLines(user.RejectionReason)...)
	lines = append(lines,
		"",
		"ご不明な点がございましたら運営までお問い合わせください。",
	)
	return subject, joinLines(lines...)
}

// ShopApproved notifies the owner their shop listing went live.
func (c *Composer) ShopApproved(owner domain.User, shop domain.Shop) (string, string) {
	subject := fmt.Sprintf("【%s】店舗掲載承認のお知らせ", c.serviceName)
	body := joinLines(
		c.clean(owner.DisplayName)+" 様",
		"",
		fmt.Sprintf("店舗「%s」の掲載が承認されました。", c.clean(shop.ShopName)),
		"所在地: "+c.clean(shop.Address),
		"",
		fmt.Sprintf("%sのアプリとウェブサイトに公開されます。", c.serviceName),
	)
	return subject, body
}

// ShopRejected notifies the owner their shop listing was declined.
func (c *Composer) ShopRejected(owner domain.User, shop domain.Shop) (string, string) {
	subject := fmt.Sprintf("【%s】店舗掲載審査結果のお知らせ", c.serviceName)
	lines := []string{
		c.clean(owner.DisplayName) + " 様",
		"",
		fmt.Sprintf("誠に申し訳ございませんが、店舗「%s」の掲載は承認されませんでした。", c.clean(shop.ShopName)),
	}
	lines = append(lines, c.reasonLines(shop.RejectionReason)...)
	lines = append(lines,
		"",
		"内容を修正のうえ、再度ご登録いただけます。",
	)
	return subject, joinLines(lines...)
}

// EventApproved notifies the owner their event listing went live.
func (c *Composer) EventApproved(owner domain.User, event domain.Event) (string, string) {
	subject := fmt.Sprintf("【%s】イベント掲載承認のお知らせ", c.serviceName)
	body := joinLines(
		c.clean(owner.DisplayName)+" 様",
		"",
		fmt.Sprintf("イベント「%s」の掲載が承認されました。", c.clean(event.EventName)),
		"開催日時: "+c.formatTime(event.EventTimeStart),
		"会場: "+c.clean(event.Venue),
		"",
		fmt.Sprintf("%sのアプリとウェブサイトに公開されます。", c.serviceName),
	)
	return subject, body
}

// EventRejected notifies the owner their event listing was declined.
func (c *Composer) EventRejected(owner domain.User, event domain.Event) (string, string) {
	subject := fmt.Sprintf("【%s】イベント掲載審査結果のお知らせ", c.serviceName)
	lines := []string{
		c.clean(owner.DisplayName) + " 様",
		"",
		fmt.Sprintf("誠に申し訳ございませんが、イベント「%s」の掲載は承認されませんでした。", c.clean(event.EventName)),
	}
	lines = append(lines, c.reasonLines(event.RejectionReason)...)
	lines = append(lines,
		"",
		"内容を修正のうえ、再度ご登録いただけます。",
	)
	return subject, joinLines(lines...)
}

// EventProgress notifies the owner of an operational lifecycle change.
func (c *Composer) EventProgress(owner domain.User, event domain.Event, progress domain.EventProgress) (string, string) {
	var headline, detail string
	switch progress {
	case domain.ProgressOngoing:
		headline = "イベント開始のお知らせ"
		detail = fmt.Sprintf("イベント「%s」が開始されました。", c.clean(event.EventName))
	case domain.ProgressCancelled:
		headline = "イベント中止のお知らせ"
		detail = fmt.Sprintf("イベント「%s」は中止されました。", c.clean(event.EventName))
	case domain.ProgressFinished:
		headline = "イベント終了のお知らせ"
		detail = fmt.Sprintf("イベント「%s」は終了しました。", c.clean(event.EventName))
	default:
		headline = "イベント状況変更のお知らせ"
		detail = fmt.Sprintf("イベント「%s」の状況が更新されました。", c.clean(event.EventName))
	}

	subject := fmt.Sprintf("【%s】%s", c.serviceName, headline)
	body := joinLines(
		c.clean(owner.DisplayName)+" 様",
		"",
		detail,
		"開催日時: "+c.formatTime(event.EventTimeStart),
		"会場: "+c.clean(event.Venue),
	)
	return subject, body
}

func (c *Composer) reasonLines(reason string) []string {
	cleaned := c.clean(reason)
	if cleaned == "" {
		return nil
	}
	return []string{"", "理由: " + cleaned}
}

func (c *Composer) clean(value string) string {
	stripped := c.sanitizer.Sanitize(value)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

func (c *Composer) formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "未定"
	}
	return ts.In(c.zone).Format("2006年1月2日 15:04")
}

func joinLines(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}
