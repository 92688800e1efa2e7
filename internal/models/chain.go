package models

// SupervisionChain lists a user's supervisors from nearest to root.
// Cycle is set when the walk met a user it had already visited.
type SupervisionChain struct {
	UserID string    `json:"userId"`
	Chain  []UserRef `json:"chain"`
	Cycle  bool      `json:"cycle"`
}
