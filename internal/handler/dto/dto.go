// Package dto provides the request and response bodies of the HTTP API.
package dto

// ErrorResponse is the JSON body of every JSON error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AuthRequest is the body of POST /api/auth.
type AuthRequest struct {
	Password string `json:"password"`
}

// AuthResponse carries the issued admin token.
type AuthResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// OKResponse acknowledges a successful write.
type OKResponse struct {
	OK bool `json:"ok"`
}

// UploadImageRequest is the body of POST /api/upload-image.
type UploadImageRequest struct {
	ImageBase64 string `json:"imageBase64"`
}

// UploadLinkImageRequest is the body of POST /api/upload-link-image.
type UploadLinkImageRequest struct {
	LinkID      string `json:"linkId"`
	ImageBase64 string `json:"imageBase64"`
}

// UploadResponse returns the public path of an uploaded image.
type UploadResponse struct {
	OK    bool   `json:"ok"`
	Image string `json:"image"`
}
