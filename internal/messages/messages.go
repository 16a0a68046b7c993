package messages

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"
)

const ParseModeHTML = "HTML"

func Escape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(s))
}

// Multiline turns literal "\n" sequences from env or stored settings into
// real line breaks.
func Multiline(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

// FormatDuration renders seconds as "1 hour 2 minutes 3 seconds".
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "0 seconds"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60

	parts := make([]string, 0, 3)
	if h > 0 {
		parts = append(parts, plural(h, "hour"))
	}
	if m > 0 {
		parts = append(parts, plural(m, "minute"))
	}
	if s > 0 || len(parts) == 0 {
		parts = append(parts, plural(s, "second"))
	}
	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

// RenderUser fills {first}, {last}, {username}, {mention} and {id} in an
// HTML template. Substituted values are escaped.
func RenderUser(template string, u *models.User) string {
	var first, last, username string
	var id int64
	if u != nil {
		first, last, id = u.FirstName, u.LastName, u.ID
		if u.Username != "" {
			username = "@" + u.Username
		}
	}
	mention := fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, id, Escape(first))
	r := strings.NewReplacer(
		"{first}", Escape(first),
		"{last}", Escape(last),
		"{username}", Escape(username),
		"{mention}", mention,
		"{id}", strconv.FormatInt(id, 10),
	)
	return Multiline(r.Replace(template))
}

func AutoDeleteNotice(template string, seconds int) string {
	r := strings.NewReplacer(
		"{time}", strconv.Itoa(seconds),
		"{formatted_time}", FormatDuration(seconds),
	)
	return Multiline(r.Replace(template))
}

func Banned() string {
	return "You have been banned from using this bot. Please contact the administrator if you believe this is a mistake."
}

func BannedAlert() string {
	return "You have been banned from using this bot."
}

func Processing() string {
	return "Processing your request..."
}

func InvalidLink() string {
	return "Invalid file link."
}

func FileUnavailable() string {
	return "🚫 <b>File not found</b>\nThe file may have been removed from the storage channel."
}

func ErrorDefault() string {
	return "🚫 <b>Something went wrong</b>\nPlease try again."
}

func BatchProcessing(first, last int) string {
	return fmt.Sprintf("Processing batch request for messages %d to %d...", first, last)
}

func BatchComplete(sent, requested, shown int) string {
	msg := fmt.Sprintf("✅ Batch processing complete. Successfully sent %d files.", sent)
	if requested > shown {
		msg += fmt.Sprintf("\n\nShowing only %d out of %d messages", shown, requested)
	}
	return msg
}

func AdPrompt() string {
	return "<b>Please click the ad link below to access your file:</b>\n\n" +
		"Your support helps us keep our servers running. Thank you for supporting our service."
}

func AdVerificationFailed() string {
	return AdPrompt() + "\n\n⚠️ <b>Verification failed. Please follow these steps:</b>\n" +
		"1. Click the \"Click here to support us\" button below\n" +
		"2. Wait at least 10 seconds on the ad page\n" +
		"3. Return to Telegram and click \"I've clicked the ad\" again"
}

func AdVerified() string {
	return "✅ <b>Ad click verified successfully!</b>\n\n" +
		"Thank you for supporting our service. Your support helps us keep the servers running."
}

func AdVerifiedAlert() string {
	return "Ad click verified! You can now access your file."
}

func AdNotClickedAlert() string {
	return "Verification failed. Please click the ad link first and try again."
}

func AdVerifyErrorAlert() string {
	return "An error occurred during verification. Please try again."
}

func AdNotClicked() string {
	return "You need to click the ad link first before accessing the file. Please try again."
}

func AdThanksWait(seconds int) string {
	return fmt.Sprintf("Thank you for supporting us! Please wait %d seconds to access your file...", seconds)
}

func GetFileAlert() string {
	return "Processing your file request..."
}

func About() string {
	return "This is a file sharing bot. Files live in a private storage channel and are shared through special links."
}

func LinkReady(link string) string {
	return "<b>Here is your link</b>\n\n" + Escape(link)
}

func AdminOnly() string {
	return "Only admins can use this command."
}

func BatchUsage(appURL string) string {
	msg := "Usage: <code>/batch first_id last_id</code>"
	if appURL != "" {
		msg += "\n\nBatch links can also be created from the web dashboard: " + Escape(appURL)
	}
	return msg
}

func GenlinkUsage() string {
	return "Forward a message from the database channel to generate a link, or use <code>/genlink message_id</code>."
}

func BatchLinks(count, first, last int) string {
	return fmt.Sprintf("✅ Generated %d links from message ID %d to %d.", count, first, last)
}

func BroadcastHint() string {
	return "Please reply to a message to broadcast it to all users."
}

func BanUsage(cmd string) string {
	return fmt.Sprintf("Usage: <code>/%s user_id</code>", Escape(cmd))
}

func UserBanned(id int64) string {
	return fmt.Sprintf("🚫 User <code>%d</code> is banned.", id)
}

func UserUnbanned(id int64, wasBanned bool) string {
	if !wasBanned {
		return fmt.Sprintf("User <code>%d</code> was not banned.", id)
	}
	return fmt.Sprintf("✅ User <code>%d</code> is unbanned.", id)
}

func Stats(template string, files, users, pending int) string {
	head := Multiline(strings.ReplaceAll(template, "{uptime}", "Active"))
	return fmt.Sprintf("%s\n\nFiles: %d\nUsers: %d\nPending deletions: %d", Escape(head), files, users, pending)
}

func SettingsSummary(protect bool, autoDeleteSeconds int, adEnabled bool, forceSub string) string {
	onOff := func(b bool) string {
		if b {
			return "Enabled"
		}
		return "Disabled"
	}
	autoDelete := "Disabled"
	if autoDeleteSeconds > 0 {
		autoDelete = FormatDuration(autoDeleteSeconds)
	}
	channel := "Disabled"
	if forceSub != "" {
		channel = Escape(forceSub)
	}
	return "<b>Current Bot Settings:</b>\n\n" +
		"Protect Content: " + onOff(protect) + "\n" +
		"Auto Delete: " + autoDelete + "\n" +
		"Ads: " + onOff(adEnabled) + "\n" +
		"Force Subscription: " + channel + "\n"
}

func SettingsReloaded() string {
	return "🔄 Settings reload requested."
}
