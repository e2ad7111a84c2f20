// Package prompt holds the bot's user-facing texts and keyboards.
package prompt

import (
	"fmt"
	"strings"

	"github.com/MyhlovetsVladyslav/bookbot/internal/chat"
	"github.com/MyhlovetsVladyslav/bookbot/internal/post"
)

// Callback keys.
const (
	KeySellBooks       = "sell_books"
	KeySearchBooks     = "search_books"
	KeyFinishPhotos    = "finish_photos"
	KeyBackToBookCount = "back_to_book_count"
	KeyBackToMenu      = "back_to_menu"
	KeyApprove         = "approve"
	KeyReject          = "reject"
)

const (
	NeedUsername    = "⚠️ Please set a Telegram username in your profile settings, then send /start again."
	Welcome         = "👋 Welcome! What would you like to do?"
	SearchStub      = "🔍 Search is not available yet. Stay tuned!"
	ActivePost      = "⏳ You already have a listing in progress. Finish it or send /cancel to start over."
	UnderReview     = "⏳ Your listing is awaiting moderation. We will let you know once it is reviewed."
	ChooseBookCount = "📚 How many books are you selling? Choose a range:"
	ChooseFromKeys  = "👆 Please choose a range using the buttons above."
	ReceiptExpected = "🧾 Please send the payment receipt as a photo."
	PhotosExpected  = "📸 Please send photos of your books or press “Finish”."
	NoPhotos        = "📷 Add at least one photo before finishing."
	TextExpected    = "✍️ Please send the description as text."
	Submitted       = "📨 Your listing was sent for moderation. We will let you know once it is reviewed."
	Published       = "🎉 Your listing has been published in the channel!"
	Rejected        = "❌ Your listing was rejected by the moderator."
	PublishFailed   = "⚠️ Something went wrong while publishing your listing. Please try again later."
	SubmitFailed    = "⚠️ We could not send your listing for moderation. Please try again."
	GenericError    = "⚠️ Something went wrong. Please try again from the menu."
	Cancelled       = "🗑 Your listing was cancelled."
	NothingToCancel = "ℹ️ You have no listing in progress."
	CannotCancel    = "⏳ Your listing is under review and can no longer be cancelled."
	Expired         = "⌛ Your listing expired because it was not completed in time. Send /start to begin again."
	StartHint       = "ℹ️ Send /start to open the menu."
	NotModerator    = "⛔ Only moderators can do this."
	ReviewGone      = "This listing is no longer awaiting moderation."
	DecisionPublish = "✅ Published"
	DecisionReject  = "❌ Rejected"
	DecisionFailed  = "⚠️ Publishing failed, the submitter was notified."
	ActionOutdated  = "This button is outdated."
)

// Menu is the main menu keyboard.
func Menu() chat.Keyboard {
	return chat.Row(
		chat.Button{Text: "📚 Sell books", Unique: KeySellBooks},
		chat.Button{Text: "🔍 Search", Unique: KeySearchBooks},
	)
}

// Tiers lists the price tiers, one per row, followed by a back button.
func Tiers(tiers []post.PriceTier) chat.Keyboard {
	kb := make(chat.Keyboard, 0, len(tiers)+1)
	for _, t := range tiers {
		kb = append(kb, []chat.Button{{Text: t.Label(), Unique: t.Key()}})
	}
	return append(kb, []chat.Button{{Text: "⬅️ Back", Unique: KeyBackToMenu}})
}

// BackToBookCount returns to the tier list.
func BackToBookCount() chat.Keyboard {
	return chat.Column(chat.Button{Text: "⬅️ Back", Unique: KeyBackToBookCount})
}

// Finish offers to stop sending photos.
func Finish() chat.Keyboard {
	return chat.Column(chat.Button{Text: "✅ Finish", Unique: KeyFinishPhotos})
}

// Review carries the moderator decision buttons; payload encodes submitter and post.
func Review(payload string) chat.Keyboard {
	return chat.Column(
		chat.Button{Text: "✅ Publish", Unique: KeyApprove, Data: payload},
		chat.Button{Text: "❌ Reject", Unique: KeyReject, Data: payload},
	)
}

func ReceiptPrompt(t post.PriceTier) string {
	return fmt.Sprintf("💳 Listing %s books costs %s.\nPlease pay and send a photo of the payment receipt.", t.Range(), t.PriceLabel())
}

func PhotosAfterReceipt(max int) string {
	return fmt.Sprintf("📸 Receipt received! Now send photos of your books (up to %d). Press “Finish” when you are done.", max)
}

func PhotosAfterDescription(max int) string {
	return fmt.Sprintf("📸 Great! Now send photos of your books (up to %d). Press “Finish” when you are done.", max)
}

// PhotosReceived is sent once photos settle. The first notice explains the next step.
func PhotosReceived(have, max int, first bool) string {
	if first {
		return fmt.Sprintf("✅ Photos received: %d/%d.\nYou can send more photos or press “Finish” to continue.", have, max)
	}
	return fmt.Sprintf("✅ Photos: %d/%d.", have, max)
}

func PhotoLimit(max int) string {
	return fmt.Sprintf("⚠️ You can attach at most %d photos. Press “Finish” to continue.", max)
}

func AlbumTooLarge(size, have, max int) string {
	return fmt.Sprintf("⚠️ This album has %d photos but only %d more fit (limit %d). The album was not added.", size, max-have, max)
}

func DescriptionPrompt(min, max int) string {
	return fmt.Sprintf("✍️ Now send a description of your books (%d to %d words).", min, max)
}

func DescriptionFirstPrompt(min, max int) string {
	return fmt.Sprintf("✍️ Describe the books you are selling (%d to %d words).", min, max)
}

func DescriptionTooShort(words, min int) string {
	return fmt.Sprintf("✍️ The description is too short: %d words, at least %d needed.", words, min)
}

func DescriptionTooLong(words, max int) string {
	return fmt.Sprintf("✍️ The description is too long: %d words, at most %d allowed.", words, max)
}

// ReviewCaption is attached to the review photo in the moderator chat.
func ReviewCaption(p *post.Post) string {
	books := p.PriceText
	switch {
	case books == "":
		books = "not specified"
	case p.Price != "":
		books += " (" + p.Price + ")"
	}
	return fmt.Sprintf("🆕 Listing for review\n📚 Books: %s\n👤 User: %s\n🖼 Photos: %d\n\n%s",
		books, p.DisplayName(), len(p.Photos), p.Description)
}

// ChannelCaption is attached to the published listing.
func ChannelCaption(p *post.Post) string {
	return fmt.Sprintf("📢 New listing from %s\n\n%s", p.DisplayName(), p.Description)
}

var stageLabels = map[post.Stage]string{
	post.StageAwaitingBookCount:      "choosing book count",
	post.StageAwaitingPaymentReceipt: "waiting for receipt",
	post.StageAwaitingPhotos:         "adding photos",
	post.StageAwaitingDescription:    "waiting for description",
	post.StageAwaitingModeration:     "under review",
	post.StagePublished:              "published",
	post.StageRejected:               "rejected",
}

// Listings summarizes the submitter's posts, newest first.
func Listings(posts []post.Post) string {
	if len(posts) == 0 {
		return "📭 You have no listings yet."
	}
	var b strings.Builder
	b.WriteString("📋 Your listings:")
	for i := len(posts) - 1; i >= 0; i-- {
		p := posts[i]
		label, ok := stageLabels[p.Stage]
		if !ok {
			label = p.Stage.String()
		}
		fmt.Fprintf(&b, "\n#%d · %s · %s", p.ID, label, p.CreatedAt.Format("2006-01-02"))
	}
	return b.String()
}
