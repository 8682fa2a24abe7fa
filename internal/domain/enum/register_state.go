package enum

// RegisterState is the purchase page's position in the scan → add → purchase flow
type RegisterState string

const (
	RegisterStateIdle              RegisterState = "idle"
	RegisterStateScanning          RegisterState = "scanning"
	RegisterStateLookingUp         RegisterState = "looking_up"
	RegisterStateFormPopulated     RegisterState = "form_populated"
	RegisterStatePurchasing        RegisterState = "purchasing"
	RegisterStateConfirmationShown RegisterState = "confirmation_shown"
)

func (s RegisterState) String() string {
	return string(s)
}

// NoticeKind tags the last user-facing message on a register
type NoticeKind string

const (
	NoticeNone           NoticeKind = ""
	NoticeNotFound       NoticeKind = "not_found"
	NoticeLookupFailed   NoticeKind = "lookup_failed"
	NoticeValidation     NoticeKind = "validation"
	NoticePurchaseFailed NoticeKind = "purchase_failed"
	NoticeEmptyList      NoticeKind = "empty_list"
	NoticeCameraError    NoticeKind = "camera_error"
	NoticeScanFailed     NoticeKind = "scan_failed"
)
