package forms

import (
	"bytes"
	"io"
	"mime/multipart"

	"github.com/gabriel-vasile/mimetype"
)

const (
	MaxProfileImageSize = 10 << 20

	MsgImageType     = "Please upload a JPG, JPEG, or PNG image"
	MsgImageTooLarge = "Image size must be less than 10MB"
	MsgImageMissing  = "Please choose an image to upload"
)

var allowedImageTypes = []string{"image/jpeg", "image/png"}

// ProfileImage is an uploaded profile picture whose content type was
// detected from its bytes rather than trusted from the browser.
type ProfileImage struct {
	FileName    string
	ContentType string
	Content     io.Reader
	Size        int64
}

// ParseProfileImage validates the multipart file: JPEG or PNG only and at
// most MaxProfileImageSize bytes.
func ParseProfileImage(file multipart.File, header *multipart.FileHeader) (*ProfileImage, error) {
	if file == nil || header == nil {
		return nil, &Error{Message: MsgImageMissing, Field: "image"}
	}
	if header.Size > MaxProfileImageSize {
		return nil, &Error{Message: MsgImageTooLarge, Field: "image"}
	}
	data, err := io.ReadAll(io.LimitReader(file, MaxProfileImageSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxProfileImageSize {
		return nil, &Error{Message: MsgImageTooLarge, Field: "image"}
	}
	if len(data) == 0 {
		return nil, &Error{Message: MsgImageMissing, Field: "image"}
	}
	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		return nil, &Error{Message: MsgImageType, Field: "image"}
	}
	return &ProfileImage{
		FileName:    header.Filename,
		ContentType: mt.String(),
		Content:     bytes.NewReader(data),
		Size:        int64(len(data)),
	}, nil
}
