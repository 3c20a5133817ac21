package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nugget/jarvis/internal/httpkit"
)

// NewsUnavailable is the reply when the news feed fails.
const NewsUnavailable = "Sorry, I couldn't fetch the news right now. Please try again later."

// DefaultNewsTopic is used when a news command names no topic.
const DefaultNewsTopic = "technology"

// NewsClient reads headlines from an RSS or Atom search feed.
type NewsClient struct {
	urlTemplate string // %s is the query-escaped topic
	count       int
	httpClient  *http.Client
}

// NewNewsClient creates a news client. urlTemplate must contain %s.
func NewNewsClient(urlTemplate string, count int, httpClient *http.Client) *NewsClient {
	if count <= 0 {
		count = 3
	}
	if httpClient == nil {
		httpClient = httpkit.NewClient()
	}
	return &NewsClient{urlTemplate: urlTemplate, count: count, httpClient: httpClient}
}

// Headline is one news item.
type Headline struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Published time.Time `json:"published,omitzero"`
}

// rssFeed is the XML structure for RSS 2.0 feeds.
type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
}

// atomFeed is the XML structure for Atom feeds.
type atomFeed struct {
	XMLName xml.Name `xml:"feed"`
	Entries []struct {
		Title     string `xml:"title"`
		Published string `xml:"published"`
		Updated   string `xml:"updated"`
		Links     []struct {
			Href string `xml:"href,attr"`
			Rel  string `xml:"rel,attr"`
		} `xml:"link"`
	} `xml:"entry"`
}

// parseHeadlines parses data as RSS 2.0 or Atom.
func parseHeadlines(data []byte) ([]Headline, error) {
	var rss rssFeed
	if err := xml.Unmarshal(data, &rss); err == nil && rss.XMLName.Local == "rss" {
		out := make([]Headline, 0, len(rss.Channel.Items))
		for _, item := range rss.Channel.Items {
			pub, _ := time.Parse(time.RFC1123Z, item.PubDate)
			if pub.IsZero() {
				pub, _ = time.Parse(time.RFC1123, item.PubDate)
			}
			out = append(out, Headline{Title: strings.TrimSpace(item.Title), Link: item.Link, Published: pub})
		}
		return out, nil
	}

	var atom atomFeed
	if err := xml.Unmarshal(data, &atom); err == nil && atom.XMLName.Local == "feed" {
		out := make([]Headline, 0, len(atom.Entries))
		for _, e := range atom.Entries {
			h := Headline{Title: strings.TrimSpace(e.Title)}
			for _, l := range e.Links {
				if l.Rel == "" || l.Rel == "alternate" {
					h.Link = l.Href
					break
				}
			}
			stamp := e.Published
			if stamp == "" {
				stamp = e.Updated
			}
			h.Published, _ = time.Parse(time.RFC3339, stamp)
			out = append(out, h)
		}
		return out, nil
	}

	return nil, fmt.Errorf("unrecognized feed format (expected RSS 2.0 or Atom)")
}

// Headlines returns up to the configured count of headlines for topic.
func (c *NewsClient) Headlines(ctx context.Context, topic string) ([]Headline, error) {
	if strings.TrimSpace(topic) == "" {
		topic = DefaultNewsTopic
	}
	feedURL := fmt.Sprintf(c.urlTemplate, url.QueryEscape(topic))

	body, err := httpkit.Get(ctx, c.httpClient, feedURL,
		"application/rss+xml, application/atom+xml, application/xml, text/xml", 1<<20)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	items, err := parseHeadlines(body)
	if err != nil {
		return nil, err
	}
	if len(items) > c.count {
		items = items[:c.count]
	}
	return items, nil
}

// NewsTool returns the news tool backed by c.
func NewsTool(c *NewsClient) *Tool {
	return &Tool{
		Name:        "news",
		Description: "Top headlines for a topic.",
		Apology:     NewsUnavailable,
		Handler: func(ctx context.Context, topic string) (string, error) {
			if strings.TrimSpace(topic) == "" {
				topic = DefaultNewsTopic
			}
			items, err := c.Headlines(ctx, topic)
			if err != nil {
				return "", err
			}
			return newsSummary(topic, items), nil
		},
	}
}

func newsSummary(topic string, items []Headline) string {
	if len(items) == 0 {
		return fmt.Sprintf("I couldn't find any news about %s right now.", topic)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Here are the latest %s headlines:", topic)
	for i, h := range items {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, h.Title)
	}
	return sb.String()
}
