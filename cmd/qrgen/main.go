// qrgen prints or downloads the attendance-marker QR codes for every
// member of a group, via the server API.
//
// Usage:
//
//	qrgen -group <group-id> [-out dir] [-server url] [-password pw]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rotctrack/internal/models"
	"rotctrack/internal/qr"
)

// Default server base URL; can override with ROTCTRACK_SERVER env var or
// the -server flag.
var serverBaseURL = "http://localhost:8080"

func main() {
	groupID := flag.String("group", "", "Group ID to generate markers for")
	outDir := flag.String("out", "", "Directory to download QR PNGs into (omit to just print URLs)")
	serverFlag := flag.String("server", "", "Override server base URL (e.g. https://attendance.example.com)")
	name := flag.String("name", "qrgen", "Login name")
	password := flag.String("password", "", "Access password (or ROTCTRACK_ADMIN_PASSWORD env)")
	size := flag.Int("size", qr.DefaultImageSize, "Rendered image edge in pixels")
	flag.Parse()

	if env := os.Getenv("ROTCTRACK_SERVER"); env != "" {
		serverBaseURL = strings.TrimRight(env, "/")
	}
	if *serverFlag != "" {
		serverBaseURL = strings.TrimRight(*serverFlag, "/")
	}
	pw := *password
	if pw == "" {
		pw = os.Getenv("ROTCTRACK_ADMIN_PASSWORD")
	}
	if *groupID == "" {
		fmt.Println("--group required")
		os.Exit(1)
	}

	if err := run(*groupID, *outDir, *name, pw, *size); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func run(groupID, outDir, name, password string, size int) error {
	token, err := login(name, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	var group models.Group
	if err := getJSON(serverBaseURL+"/groups/"+groupID, token, &group); err != nil {
		return fmt.Errorf("fetch group: %w", err)
	}
	fmt.Printf("Group %s: %d members\n", group.Name, len(group.Members))

	if outDir != "" {
		if err := os.MkdirAll(outDir, 0700); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for _, member := range group.Members {
		payload, err := qr.EncodeMarker(member.ID)
		if err != nil {
			return fmt.Errorf("encode marker for %s: %w", member.ID, err)
		}
		url := qr.ImageURL(payload, size)
		fmt.Printf("%s\t%s\n", member.Name, url)

		if outDir == "" {
			continue
		}
		img, err := qr.FetchImage(ctx, nil, payload, size)
		if err != nil {
			return fmt.Errorf("download image for %s: %w", member.Name, err)
		}
		path := filepath.Join(outDir, member.ID+".png")
		if err := os.WriteFile(path, img, 0644); err != nil {
			return err
		}
		fmt.Println("  saved", path)
	}
	return nil
}

// ===== HTTP helpers =====

func login(name, password string) (string, error) {
	body, status, err := postJSON(serverBaseURL+"/login", map[string]string{
		"name":     name,
		"password": password,
	}, "")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("server returned status %d: %s", status, string(body))
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	return resp.Token, nil
}

func postJSON(url string, payload any, token string) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(string(data)))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return b, resp.StatusCode, nil
}

func getJSON(url, token string, dst any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
