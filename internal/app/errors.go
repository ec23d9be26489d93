package app

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrEmailExists         = errors.New("email already registered")
	ErrInvalidCredential   = errors.New("incorrect email or password")
	ErrWrongPassword       = errors.New("current password is incorrect")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrInvalidRefreshToken = errors.New("refresh token is invalid")
	ErrRefreshTokenExpired = errors.New("refresh token was expired")
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailNotFound       = errors.New("email not found")
	ErrInvalidOTP          = errors.New("invalid or expired otp")
	ErrOTPUnavailable      = errors.New("password reset is not available")

	ErrProjectNotFound  = errors.New("project not found")
	ErrFolderNotFound   = errors.New("folder not found")
	ErrParentNotFound   = errors.New("parent folder not found")
	ErrFolderNameExists = errors.New("folder with this name already exists")
	ErrFolderCycle      = errors.New("cannot move folder into itself or its descendant")
	ErrFileNotFound     = errors.New("file not found")

	ErrDocumentNotFound    = errors.New("document not found")
	ErrForbidden           = errors.New("not allowed to modify this document")
	ErrInvalidDocType      = errors.New("invalid document type")
	ErrInvalidStatus       = errors.New("invalid document status")
	ErrMissingDependencies = errors.New("missing required documents")
	ErrAIService           = errors.New("ai service failed")
	ErrAINotConfigured     = errors.New("ai service is not configured for this document type")
	ErrStorageUpload       = errors.New("failed to upload file to storage")
)

// MissingDependenciesError reports the required document types a project
// still lacks before DocType can be generated.
type MissingDependenciesError struct {
	DocType            string
	MissingRequired    []string
	MissingRecommended []string
}

func (e *MissingDependenciesError) Error() string {
	return fmt.Sprintf("cannot generate %s, missing required documents: %s",
		e.DocType, strings.Join(e.MissingRequired, ", "))
}

func (e *MissingDependenciesError) Unwrap() error {
	return ErrMissingDependencies
}
