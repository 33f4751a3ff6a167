package drive

// ResolveWebURL returns the link a user opens the file with.
// The API's webViewLink takes precedence; otherwise the generic viewer URL is built from the ID.
func ResolveWebURL(fileID, webViewLink string) string {
	if webViewLink != "" {
		return webViewLink
	}
	if fileID == "" {
		return ""
	}
	return "https://drive.google.com/file/d/" + fileID + "/view"
}
