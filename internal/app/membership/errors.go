package membership

import "errors"

var (
	// ErrInvalidIdentifier means a user or group id did not normalize. No I/O
	// was attempted.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrGroupFull means userCount has reached userMax. Nothing was written.
	ErrGroupFull = errors.New("group is full")
	// ErrNotAMember means leave found no relation. Nothing was deleted.
	ErrNotAMember = errors.New("user is not a member of this group")
	// ErrAlreadyMember means the store rejected the relation as a duplicate.
	ErrAlreadyMember = errors.New("user is already a member of this group")
	// ErrGroupNotFound means the group id or join code matched nothing.
	ErrGroupNotFound = errors.New("group not found")
	// ErrMembershipWriteFailed wraps the final error after every attempt to
	// create and confirm a relation failed.
	ErrMembershipWriteFailed = errors.New("could not add membership, please try again")
	// ErrLeaveFailed wraps the error from deleting a relation.
	ErrLeaveFailed = errors.New("could not leave group")
	// ErrInvalidGroup means a new group's name or capacity was rejected.
	ErrInvalidGroup = errors.New("invalid group")

	errUnconfirmed = errors.New("membership relation not visible after write")
)
