package membership

import "errors"

var (
	ErrNotFound            = errors.New("membership: not found")
	ErrAlreadyMember       = errors.New("membership: user is already a member")
	ErrInvalidRole         = errors.New("membership: invalid role")
	ErrCannotRemoveCreator = errors.New("membership: cannot remove project creator")
	ErrUnauthorized        = errors.New("membership: unauthorized")
	ErrInvalidInput        = errors.New("membership: invalid input")
)
