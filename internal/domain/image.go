package domain

import "io"

// ImageUpload is an image file received with a product write
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}
