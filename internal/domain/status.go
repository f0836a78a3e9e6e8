package domain

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var knownStatuses = map[Status]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusCancelled:  true,
}

// Valid reports whether s is one of the known order statuses. Transitions
// between known statuses are unrestricted; only the spelling is checked.
func (s Status) Valid() bool {
	return knownStatuses[s]
}

// HoldsStock reports whether an order in status s currently holds its stock
// reservation. Only cancelled orders have returned their reservation;
// completed orders keep theirs (the goods left the shelf).
func (s Status) HoldsStock() bool {
	return s != StatusCancelled
}

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}
