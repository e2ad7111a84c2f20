package post

// Stage is the position of a post in the submission flow.
type Stage string

const (
	StageAwaitingBookCount      Stage = "awaiting_book_count"
	StageAwaitingPaymentReceipt Stage = "awaiting_payment_receipt"
	StageAwaitingPhotos         Stage = "awaiting_photos"
	StageAwaitingDescription    Stage = "awaiting_description"
	StageAwaitingModeration     Stage = "awaiting_moderation"
	StagePublished              Stage = "published"
	StageRejected               Stage = "rejected"
)

// TerminalStages lists the stages a post never leaves.
var TerminalStages = []Stage{StagePublished, StageRejected}

func (s Stage) String() string { return string(s) }

// IsValid reports whether s is one of the known stages.
func (s Stage) IsValid() bool {
	switch s {
	case StageAwaitingBookCount, StageAwaitingPaymentReceipt, StageAwaitingPhotos,
		StageAwaitingDescription, StageAwaitingModeration, StagePublished, StageRejected:
		return true
	}
	return false
}

// Terminal reports whether the post is finished.
func (s Stage) Terminal() bool {
	return s == StagePublished || s == StageRejected
}

// Cancellable reports whether the submitter may still delete the post.
// Posts under review belong to the moderator until decided.
func (s Stage) Cancellable() bool {
	return !s.Terminal() && s != StageAwaitingModeration
}

// Variant selects the shape of the submission flow.
type Variant string

const (
	// VariantPaid asks for a price tier and a payment receipt, then photos and a description.
	VariantPaid Variant = "paid"
	// VariantDescriptionFirst asks for the description first, then photos.
	VariantDescriptionFirst Variant = "description_first"
)

// IsValid reports whether v is a known variant.
func (v Variant) IsValid() bool {
	return v == VariantPaid || v == VariantDescriptionFirst
}

// FirstStage is the stage a new post starts in.
func (v Variant) FirstStage() Stage {
	if v == VariantDescriptionFirst {
		return StageAwaitingDescription
	}
	return StageAwaitingBookCount
}
