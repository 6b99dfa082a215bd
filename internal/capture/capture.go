package capture

// Capture is one row of the full capture listing: a WindowCapture row
// left-joined to its app, file and web relations.
type Capture struct {
	// ID is the WindowCapture primary key. Strictly increasing in insertion
	// order but may have gaps after Recall evicts old rows.
	ID int64 `json:"id"`

	// Name is the capture event name recorded by Recall
	Name string `json:"name"`

	// ImageToken names a file in the image store (nullable: no screenshot)
	ImageToken *string `json:"image_token,omitempty"`

	// WindowTitle may be empty
	WindowTitle string `json:"window_title"`

	// AppName is nil when no WindowCaptureAppRelation row exists
	AppName *string `json:"app_name,omitempty"`

	// Timestamp is milliseconds since the Unix epoch, UTC
	Timestamp int64 `json:"timestamp"`

	FilePath *string `json:"file_path,omitempty"`
	WebURI   *string `json:"web_uri,omitempty"`
}

// HasImage reports whether the capture references a screenshot.
func (c Capture) HasImage() bool {
	return c.ImageToken != nil && *c.ImageToken != ""
}

// ImageMark renders HasImage as the O/X mark used in listings.
func (c Capture) ImageMark() string {
	if c.HasImage() {
		return "O"
	}
	return "X"
}

// CaptureWithOCR is one row of the browsing view: a capture that has a
// screenshot, with the OCR text from the full-text index content table.
type CaptureWithOCR struct {
	ID          int64   `json:"id"`
	Timestamp   int64   `json:"timestamp"`
	WindowTitle string  `json:"window_title"`
	ImageToken  string  `json:"image_token"`
	OCRText     *string `json:"ocr_text,omitempty"`
}

// OCR returns the OCR text or "" when none was indexed.
func (c CaptureWithOCR) OCR() string {
	if c.OCRText == nil {
		return ""
	}
	return *c.OCRText
}
