package podcast

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"dailycast/internal/config"
)

const (
	itunesNamespace = "http://www.itunes.com/dtds/podcast-1.0.dtd"
	atomNamespace   = "http://www.w3.org/2005/Atom"
)

type rssFeed struct {
	XMLName  xml.Name   `xml:"rss"`
	Version  string     `xml:"version,attr"`
	ItunesNS string     `xml:"xmlns:itunes,attr"`
	AtomNS   string     `xml:"xmlns:atom,attr"`
	Channel  rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string      `xml:"title"`
	Link        string      `xml:"link"`
	Description string      `xml:"description"`
	Language    string      `xml:"language"`
	AtomLink    atomLink    `xml:"atom:link"`
	Author      string      `xml:"itunes:author,omitempty"`
	Summary     string      `xml:"itunes:summary,omitempty"`
	Explicit    string      `xml:"itunes:explicit"`
	Category    rssCategory `xml:"itunes:category"`
	Owner       *rssOwner   `xml:"itunes:owner,omitempty"`
	Items       []rssItem   `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssCategory struct {
	Text string `xml:"text,attr"`
}

type rssOwner struct {
	Name  string `xml:"itunes:name"`
	Email string `xml:"itunes:email"`
}

type rssItem struct {
	Title       string       `xml:"title"`
	Description string       `xml:"description"`
	PubDate     string       `xml:"pubDate"`
	GUID        rssGUID      `xml:"guid"`
	Enclosure   rssEnclosure `xml:"enclosure"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// Episode is one published digest referenced by the feed.
type Episode struct {
	Date     string
	Title    string
	Summary  string
	AudioURL string
	Size     int64
}

// BuildFeed renders the podcast RSS document for the given episodes, newest
// first.
func BuildFeed(feedCfg config.Feed, episodes []Episode) ([]byte, error) {
	sorted := make([]Episode, len(episodes))
	copy(sorted, episodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date > sorted[j].Date })

	explicit := "no"
	if feedCfg.Explicit {
		explicit = "yes"
	}

	channel := rssChannel{
		Title:       feedCfg.Title,
		Link:        feedCfg.Link,
		Description: feedCfg.Description,
		Language:    feedCfg.Language,
		AtomLink: atomLink{
			Href: feedCfg.FeedURL,
			Rel:  "self",
			Type: "application/rss+xml",
		},
		Author:   feedCfg.Author,
		Summary:  feedCfg.Description,
		Explicit: explicit,
		Category: rssCategory{Text: feedCfg.Category},
	}
	if feedCfg.OwnerName != "" || feedCfg.OwnerEmail != "" {
		channel.Owner = &rssOwner{Name: feedCfg.OwnerName, Email: feedCfg.OwnerEmail}
	}

	for _, episode := range sorted {
		pubDate, err := time.Parse("2006-01-02", episode.Date)
		if err != nil {
			return nil, fmt.Errorf("parse episode date %q: %w", episode.Date, err)
		}
		channel.Items = append(channel.Items, rssItem{
			Title:       episode.Title,
			Description: episode.Summary,
			PubDate:     pubDate.UTC().Format(time.RFC1123Z),
			GUID:        rssGUID{IsPermaLink: "false", Value: episode.AudioURL},
			Enclosure: rssEnclosure{
				URL:    episode.AudioURL,
				Length: episode.Size,
				Type:   "audio/mpeg",
			},
		})
	}

	feed := rssFeed{
		Version:  "2.0",
		ItunesNS: itunesNamespace,
		AtomNS:   atomNamespace,
		Channel:  channel,
	}

	body, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal feed: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// WriteFeed atomically replaces the feed file.
func WriteFeed(path string, contents []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("feed dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".podcast-*.xml")
	if err != nil {
		return fmt.Errorf("create temp feed: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(contents); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp feed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp feed: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace feed: %w", err)
	}
	return nil
}
