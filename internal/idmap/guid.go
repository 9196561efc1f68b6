// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package idmap

import (
	"regexp"
	"strings"
)

// Plex exposes external ids through GUID strings in several generations of
// schemes. IDsFromGUID recognizes the common ones:
//
//	imdb://tt0944947
//	tmdb://1399          (also themoviedb://)
//	tvdb://121361        (also thetvdb://)
//	com.plexapp.agents.imdb://tt0944947?lang=en
//	com.plexapp.agents.themoviedb://1399?lang=en
//	plex://show/5d9c086c46115600200aa2fe
var agentGUIDRe = regexp.MustCompile(`^com\.plexapp\.agents\.([a-z0-9]+)://([^?]+)`)

// IDsFromGUID parses a provider GUID string into a normalized id map.
// Unrecognized schemes are preserved under the "guid" kind so the value is
// never silently lost.
func IDsFromGUID(guid string) map[string]string {
	guid = strings.TrimSpace(guid)
	if guid == "" {
		return nil
	}

	if m := agentGUIDRe.FindStringSubmatch(guid); m != nil {
		kind, value := agentKind(m[1]), m[2]
		if kind != "" {
			if v := NormalizeID(kind, value); v != "" {
				return map[string]string{kind: v}
			}
		}
		return map[string]string{"guid": guid}
	}

	scheme, rest, ok := strings.Cut(guid, "://")
	if !ok {
		return map[string]string{"guid": guid}
	}
	rest, _, _ = strings.Cut(rest, "?")

	switch strings.ToLower(scheme) {
	case "imdb":
		if v := NormalizeID("imdb", rest); v != "" {
			return map[string]string{"imdb": v}
		}
	case "tmdb", "themoviedb":
		if v := NormalizeID("tmdb", rest); v != "" {
			return map[string]string{"tmdb": v}
		}
	case "tvdb", "thetvdb":
		if v := NormalizeID("tvdb", rest); v != "" {
			return map[string]string{"tvdb": v}
		}
	case "plex":
		// plex://show/5d9c... — opaque id, kept verbatim under guid.
		return map[string]string{"guid": guid}
	}
	return map[string]string{"guid": guid}
}

// agentKind maps legacy Plex agent names to id kinds.
func agentKind(agent string) string {
	switch agent {
	case "imdb":
		return "imdb"
	case "themoviedb", "tmdb":
		return "tmdb"
	case "thetvdb", "tvdb":
		return "tvdb"
	case "hama", "anidb":
		return "anidb"
	default:
		return ""
	}
}
