package media

import (
	"fmt"
	"math"
	"net/url"
	"strings"
)

// FormatDuration renders seconds as M:SS with unbounded minutes.
func FormatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	total := int64(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatSize renders a byte count as megabytes with two decimals, or
// unknown when the size is absent.
func FormatSize(size *int64, unknown string) string {
	if size == nil || *size <= 0 {
		return unknown
	}
	return fmt.Sprintf("%.2f MB", float64(*size)/1024/1024)
}

var illegalFileChars = strings.NewReplacer(
	`\`, "",
	"/", "",
	"*", "",
	"?", "",
	":", "",
	`"`, "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFilename removes the characters illegal in file names and nothing else.
func SanitizeFilename(title string) string {
	return illegalFileChars.Replace(title)
}

// FileName builds the download name from a title and extension.
// fallback replaces a title that sanitizes to nothing.
func FileName(title, ext, fallback string) string {
	name := SanitizeFilename(title)
	if strings.TrimSpace(name) == "" {
		name = fallback
	}
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// ContentDisposition returns an attachment header value carrying name as an
// RFC 5987 UTF-8 parameter.
func ContentDisposition(name string) string {
	encoded := strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
	return "attachment; filename*=UTF-8''" + encoded
}
