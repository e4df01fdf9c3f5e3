package messaging

// Operation kinds carried by patient and report change notifications.
const (
	OpCreated  = "created"
	OpDeleted  = "deleted"
	OpRestored = "restored"
)

// UserCreatedEvent notifies downstream services of a new user. The password
// travels only on the wire so the auth store can hash and keep its own copy.
type UserCreatedEvent struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

// UserUpdatedEvent notifies downstream services of a username change. It is
// only published when the username actually changed.
type UserUpdatedEvent struct {
	OldUsername string `json:"old_username"`
	NewUsername string `json:"new_username"`
}

// UserDeletedEvent notifies downstream services of a soft deletion.
type UserDeletedEvent struct {
	Username string `json:"username"`
}

// UserRestoredEvent notifies downstream services that a soft-deleted user
// was restored.
type UserRestoredEvent struct {
	Username string `json:"username"`
}

// UserRoleEvent notifies downstream services of a role addition or removal;
// the routing key distinguishes the two.
type UserRoleEvent struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// PatientChangedEvent notifies downstream services of a patient mutation.
type PatientChangedEvent struct {
	Op         string `json:"op"`
	TRIDNumber string `json:"tr_id_number"`
}

// ReportChangedEvent notifies downstream services of a report mutation.
type ReportChangedEvent struct {
	Op         string `json:"op"`
	FileNumber string `json:"file_number"`
}
