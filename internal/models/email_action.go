package models

// EmailAction tags outgoing emails by purpose. The tag is carried in the
// delivery task payload and used by the mock Redis sender so tests can
// fetch the last email of a given kind.
type EmailAction string

const (
	ActionWelcome             EmailAction = "welcome"
	ActionEnquiryNotification EmailAction = "enquiry_notification"
	ActionRoleChanged         EmailAction = "role_changed"
)
