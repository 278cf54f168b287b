package users

import "errors"

var (
	ErrNotFound            = errors.New("user not found")
	ErrEmailTaken          = errors.New("User with this email already exists")
	ErrInvalidCredentials  = errors.New("Incorrect email or password")
	ErrInvalidInput        = errors.New("invalid user input")
	ErrMissingAdminDetails = errors.New("password and name are required to create a new admin user")
)
