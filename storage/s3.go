package storage

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Cloudinary configuration via environment variables:
// CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY, CLOUDINARY_API_SECRET,
// CLOUDINARY_FOLDER (optional). Used for business logos and proposal
// attachments.

func InitializeS3() {}

var uploadClient = &http.Client{Timeout: 30 * time.Second}

// UploadBase64File pushes a base64 data URI to Cloudinary and returns the
// hosted URL, or an empty string on failure.
func UploadBase64File(base64Src string, publicID string) string {
	if base64Src == "" {
		return ""
	}

	cloudName := os.Getenv("CLOUDINARY_CLOUD_NAME")
	apiKey := os.Getenv("CLOUDINARY_API_KEY")
	apiSecret := os.Getenv("CLOUDINARY_API_SECRET")
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		fmt.Printf("ERROR: Cloudinary is not configured\n")
		return ""
	}

	folder := os.Getenv("CLOUDINARY_FOLDER")
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	// Signature over the sorted upload params
	toSign := ""
	if folder != "" {
		toSign += "folder=" + folder + "&"
	}
	toSign += "public_id=" + publicID + "&timestamp=" + timestamp + apiSecret
	signature := fmt.Sprintf("%x", sha1.Sum([]byte(toSign)))

	form := url.Values{}
	form.Set("file", base64Src)
	form.Set("public_id", publicID)
	form.Set("timestamp", timestamp)
	form.Set("api_key", apiKey)
	form.Set("signature", signature)
	if folder != "" {
		form.Set("folder", folder)
	}

	endpoint := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/auto/upload", cloudName)
	resp, err := uploadClient.Post(endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		fmt.Printf("ERROR: Cloudinary upload failed: %v\n", err)
		return ""
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("ERROR: Cloudinary upload status %d: %s\n", resp.StatusCode, string(body))
		return ""
	}

	var result struct {
		SecureURL string `json:"secure_url"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		fmt.Printf("ERROR: Cloudinary response parse failed: %v\n", err)
		return ""
	}
	return result.SecureURL
}
