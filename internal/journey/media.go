package journey

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrInvalidURL      = errors.New("url must be an absolute http(s) URL")
	ErrUnsupportedHost = errors.New("video links must point to YouTube or Vimeo")
)

var (
	youTubeID = regexp.MustCompile(`^[A-Za-z0-9_-]{6,20}$`)
	vimeoID   = regexp.MustCompile(`^[0-9]{3,12}$`)
)

// Video describes an embeddable video link.
type Video struct {
	Provider     string `json:"provider"`
	VideoID      string `json:"videoId"`
	EmbedURL     string `json:"embedUrl"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// ValidateLink returns the parsed URL when raw is an absolute http(s) URL.
func ValidateLink(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return nil, ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, ErrInvalidURL
	}
	return parsed, nil
}

// ParseVideo recognises YouTube (watch, youtu.be, embed, shorts) and Vimeo links.
func ParseVideo(raw string) (Video, error) {
	parsed, err := ValidateLink(raw)
	if err != nil {
		return Video{}, err
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := pathSegments(parsed.Path)

	switch host {
	case "youtube.com", "youtube-nocookie.com":
		var id string
		switch {
		case len(segments) == 1 && segments[0] == "watch":
			id = parsed.Query().Get("v")
		case len(segments) >= 2 && (segments[0] == "embed" || segments[0] == "shorts" || segments[0] == "live"):
			id = segments[1]
		}
		return youTubeVideo(id)
	case "youtu.be":
		if len(segments) == 0 {
			return Video{}, ErrUnsupportedHost
		}
		return youTubeVideo(segments[0])
	case "vimeo.com", "player.vimeo.com":
		for i := len(segments) - 1; i >= 0; i-- {
			if vimeoID.MatchString(segments[i]) {
				return Video{
					Provider: "vimeo",
					VideoID:  segments[i],
					EmbedURL: "https://player.vimeo.com/video/" + segments[i],
				}, nil
			}
		}
	}
	return Video{}, ErrUnsupportedHost
}

func youTubeVideo(id string) (Video, error) {
	if !youTubeID.MatchString(id) {
		return Video{}, ErrUnsupportedHost
	}
	return Video{
		Provider:     "youtube",
		VideoID:      id,
		EmbedURL:     "https://www.youtube.com/embed/" + id,
		ThumbnailURL: "https://img.youtube.com/vi/" + id + "/hqdefault.jpg",
	}, nil
}

func pathSegments(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
