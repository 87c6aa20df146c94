package api

import "testing"

func TestIsValidSessionObjectKey(t *testing.T) {
	const key = "sess-1234"

	valid := []string{
		"cv-uploads/sess-1234/file.pdf",
		"headshots/sess-1234/photo.png",
		"generated-files/sess-1234/doc.pdf",
	}
	for _, objectKey := range valid {
		if !isValidSessionObjectKey(key, objectKey) {
			t.Errorf("expected %q to be valid", objectKey)
		}
	}

	invalid := []string{
		"",
		"cv-uploads/other-session/file.pdf",
		"cv-uploads/sess-1234/../secret.pdf",
		"cv-uploads/sess-1234//file.pdf",
		"cv-uploads/sess-1234/file\\name.pdf",
		"random-prefix/sess-1234/file.pdf",
	}
	for _, objectKey := range invalid {
		if isValidSessionObjectKey(key, objectKey) {
			t.Errorf("expected %q to be rejected", objectKey)
		}
	}
}
