package remote

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// feedLink はHTMLのheadから検出したフィード候補。
type feedLink struct {
	url  string
	atom bool
}

// isHTML はContent-TypeがHTMLかを判定する。
func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// discoverFeedLink はHTMLページのheadから<link rel="alternate">のフィードを探す。
// 優先順位は 同一ホスト > Atom > 出現順。相対URLはpageURLを基準に解決する。
func discoverFeedLink(body []byte, pageURL string) (string, bool) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}

	links := parseFeedLinks(body, base)
	if len(links) == 0 {
		return "", false
	}

	pageHost := strings.ToLower(base.Hostname())
	best, bestScore := 0, -1
	for i, l := range links {
		score := 0
		if u, err := url.Parse(l.url); err == nil && strings.ToLower(u.Hostname()) == pageHost {
			score += 100
		}
		if l.atom {
			score += 10
		}
		// 同点の場合は先に出現したリンクを優先する
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return links[best].url, true
}

// parseFeedLinks はheadタグ内のRSS/Atomリンクを出現順に返す。
func parseFeedLinks(body []byte, base *url.URL) []feedLink {
	var links []feedLink
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	inHead := false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return links

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			switch string(tn) {
			case "head":
				inHead = true
				continue
			case "body":
				return links
			case "link":
			default:
				continue
			}
			if !inHead || !hasAttr {
				continue
			}

			var rel, typ, href string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					typ = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}

			if rel != "alternate" || href == "" {
				continue
			}
			if typ != "application/rss+xml" && typ != "application/atom+xml" {
				continue
			}
			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			links = append(links, feedLink{
				url:  base.ResolveReference(ref).String(),
				atom: typ == "application/atom+xml",
			})

		case html.EndTagToken:
			if tn, _ := tokenizer.TagName(); string(tn) == "head" {
				return links
			}
		}
	}
}
