package bill

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is wrapped by stores when the bills resource is missing.
	ErrNotFound = errors.New("Erreur 404")

	// ErrServer is wrapped by stores on transport or server failures.
	ErrServer = errors.New("Erreur 500")

	// ErrBusy is returned when a handler fires while another step is running.
	ErrBusy = errors.New("submission busy")

	// ErrUploadInProgress is returned when the form is submitted before the
	// receipt upload has resolved.
	ErrUploadInProgress = errors.New("receipt upload in progress")

	errEmptyUpload = errors.New("store returned no upload result")
)

// InvalidFileMessage is shown next to the file input for rejected receipts.
const InvalidFileMessage = "Le fichier doit être au format jpg, jpeg ou png"

// ValidationError reports a bad user input. No store call was made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UploadError wraps a rejected receipt upload
type UploadError struct {
	FileName string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading %s: %v", e.FileName, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// FetchError wraps a failed bills listing
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching bills: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Message returns the text the view renders for this failure.
func (e *FetchError) Message() string {
	if errors.Is(e.Err, ErrNotFound) {
		return ErrNotFound.Error()
	}
	return ErrServer.Error()
}

// UpdateError wraps a rejected bill update
type UpdateError struct {
	ID  string
	Err error
}

func (e *UpdateError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("creating bill: %v", e.Err)
	}
	return fmt.Sprintf("updating bill %s: %v", e.ID, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }
