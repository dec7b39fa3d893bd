// Package match pairs a sidecar's declared filename with a media file in
// the same directory, resolving the naming damage the export service does:
// truncation, localized "-edited" suffixes, and parenthesized duplicate
// counters.
package match

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/axatjpr/photometa-restore/core"
)

// titleSanitizer drops characters the service strips from filenames before
// export, so the declared title lines up with what is actually on disk.
var titleSanitizer = strings.NewReplacer(
	"%", "", "<", "", ">", "", "=", "", ":", "", "?", "", "¿", "",
	"*", "", "#", "", "&", "", "{", "", "}", "", "\\", "", "@", "",
	"!", "", "+", "", "|", "", "\"", "", "'", "",
)

// SanitizeTitle removes filesystem-incompatible characters from a declared
// title.
func SanitizeTitle(title string) string {
	return titleSanitizer.Replace(title)
}

var counterRE = regexp.MustCompile(`\((\d+)\)$`)

// Index holds the filenames of one source directory, split into media and
// sidecars. The coordinator removes names as files are moved away so a
// later sidecar cannot re-match them.
type Index struct {
	media    []string // sorted
	mediaSet map[string]struct{}
	lower    map[string][]string
	sidecars map[string]struct{}
}

// NewIndex builds an Index from a directory listing.
func NewIndex(names []string) *Index {
	ix := &Index{
		mediaSet: make(map[string]struct{}),
		lower:    make(map[string][]string),
		sidecars: make(map[string]struct{}),
	}
	for _, n := range names {
		if strings.EqualFold(filepath.Ext(n), ".json") {
			ix.sidecars[n] = struct{}{}
			continue
		}
		ix.media = append(ix.media, n)
		ix.mediaSet[n] = struct{}{}
		l := strings.ToLower(n)
		ix.lower[l] = append(ix.lower[l], n)
	}
	sort.Strings(ix.media)
	for _, v := range ix.lower {
		sort.Strings(v)
	}
	return ix
}

// Remove forgets a media filename after it has been moved away.
func (ix *Index) Remove(name string) {
	if _, ok := ix.mediaSet[name]; !ok {
		return
	}
	delete(ix.mediaSet, name)
	for i, n := range ix.media {
		if n == name {
			ix.media = append(ix.media[:i], ix.media[i+1:]...)
			break
		}
	}
	l := strings.ToLower(name)
	rest := ix.lower[l][:0]
	for _, n := range ix.lower[l] {
		if n != name {
			rest = append(rest, n)
		}
	}
	if len(rest) == 0 {
		delete(ix.lower, l)
	} else {
		ix.lower[l] = rest
	}
}

func (ix *Index) has(name string) bool {
	_, ok := ix.mediaSet[name]
	return ok
}

// foldHit returns the lexicographically first media name equal to name
// under case folding.
func (ix *Index) foldHit(name string) (string, bool) {
	if v := ix.lower[strings.ToLower(name)]; len(v) > 0 {
		return v[0], true
	}
	return "", false
}

func (ix *Index) hasSidecar(name string) bool {
	_, ok := ix.sidecars[name]
	return ok
}

// Resolve locates the media file for one sidecar. sidecarName is the
// sidecar's own filename, consulted for a duplicate counter. The boolean is
// false when no rule produced a candidate.
//
// Resolution order, first hit wins:
//  1. exact filename (case-sensitive, then case-insensitive)
//  2. truncated declared name, same extension, longest shared prefix
//  3. edited variant (declared name with "-<suffix>" before the extension)
//  4. numbered duplicate "name(N).ext", preferring the counter embedded in
//     the sidecar's filename, else the lowest free counter
//
// Ties inside a rule break by lexicographic filename order, so runs are
// reproducible.
func Resolve(rec core.SidecarRecord, sidecarName string, ix *Index, cfg core.Config) (core.MatchCandidate, bool) {
	title := SanitizeTitle(rec.Title)
	ext := filepath.Ext(title)
	base := strings.TrimSuffix(title, ext)

	// A counter on the sidecar itself pins the pairing: "party.jpg(1).json"
	// belongs to "party(1).jpg", never to "party.jpg".
	if n, ok := sidecarCounter(sidecarName); ok {
		numbered := fmt.Sprintf("%s(%d)%s", base, n, ext)
		if ix.has(numbered) {
			return ix.markEdited(core.MatchCandidate{Name: numbered, Tier: core.TierNumberedDup}, cfg), true
		}
	}

	// Rule 1: exact.
	if ix.has(title) {
		return ix.markEdited(core.MatchCandidate{Name: title, Tier: core.TierExact}, cfg), true
	}
	if hit, ok := ix.foldHit(title); ok {
		return ix.markEdited(core.MatchCandidate{Name: hit, Tier: core.TierExact}, cfg), true
	}

	// Rule 2: truncated.
	if hit, ok := ix.truncatedHit(base, ext, cfg.TruncateLen); ok {
		return ix.markEdited(core.MatchCandidate{Name: hit, Tier: core.TierTruncated}, cfg), true
	}

	// Rule 3: edited variant.
	if cand, ok := ix.editedHit(base, ext, cfg); ok {
		return cand, true
	}

	// Rule 4: numbered duplicate.
	if hit, ok := ix.numberedHit(title, base, ext, cfg.TruncateLen); ok {
		return ix.markEdited(core.MatchCandidate{Name: hit, Tier: core.TierNumberedDup}, cfg), true
	}

	return core.MatchCandidate{}, false
}

// markEdited flags a candidate whose own name carries the edited suffix,
// which happens when the sidecar declares the edited filename directly. The
// pre-edit original is then staged exactly as for an editedHit.
func (ix *Index) markEdited(cand core.MatchCandidate, cfg core.Config) core.MatchCandidate {
	ext := filepath.Ext(cand.Name)
	cbase := strings.TrimSuffix(cand.Name, ext)
	marker := "-" + cfg.EditedSuffix
	if !strings.HasSuffix(cbase, marker) || len(cbase) == len(marker) {
		return cand
	}
	cand.Edited = true
	orig := strings.TrimSuffix(cbase, marker) + ext
	if ix.has(orig) {
		cand.OriginalName = orig
	} else if o, ok := ix.foldHit(orig); ok {
		cand.OriginalName = o
	} else {
		cand.OriginalMissing = true
	}
	return cand
}

// truncatedHit finds a file whose base is a proper prefix of the declared
// base, cut off by the export length limit. The candidate must share the
// extension, and its base may not be shorter than the limit minus the
// extension, which keeps unrelated short names from matching. The longest
// candidate wins; the sorted index breaks length ties lexicographically.
func (ix *Index) truncatedHit(base, ext string, truncLen int) (string, bool) {
	if len(base) <= truncLen {
		return "", false
	}
	floor := truncLen - len(ext)
	best := ""
	bestLen := -1
	for _, name := range ix.media {
		cext := filepath.Ext(name)
		if !strings.EqualFold(cext, ext) {
			continue
		}
		cbase := strings.TrimSuffix(name, cext)
		if len(cbase) >= len(base) || len(cbase) < floor {
			continue
		}
		if strings.HasPrefix(base, cbase) && len(cbase) > bestLen {
			best = name
			bestLen = len(cbase)
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// editedHit looks for the declared name with "-<suffix>" inserted before
// the extension, trying the truncated base as well. When an edited variant
// is found, the pre-edit original is searched for separately so the caller
// can stage it for the raw-originals tree.
func (ix *Index) editedHit(base, ext string, cfg core.Config) (core.MatchCandidate, bool) {
	bases := []string{base}
	if len(base) > cfg.TruncateLen {
		bases = append(bases, base[:cfg.TruncateLen])
	}
	for _, b := range bases {
		name := b + "-" + cfg.EditedSuffix + ext
		hit, ok := "", false
		if ix.has(name) {
			hit, ok = name, true
		} else {
			hit, ok = ix.foldHit(name)
		}
		if !ok {
			continue
		}
		cand := core.MatchCandidate{Name: hit, Tier: core.TierSuffixStripped, Edited: true}
		orig := b + ext
		if ix.has(orig) {
			cand.OriginalName = orig
		} else if o, ok := ix.foldHit(orig); ok {
			cand.OriginalName = o
		} else {
			cand.OriginalMissing = true
		}
		return cand, true
	}
	return core.MatchCandidate{}, false
}

// numberedHit resolves a declared name against its "(N)" duplicates,
// taking the lowest counter whose duplicate is not claimed by a sidecar of
// its own.
func (ix *Index) numberedHit(title, base, ext string, truncLen int) (string, bool) {
	bases := []string{base}
	if len(base) > truncLen {
		bases = append(bases, base[:truncLen])
	}
	for _, b := range bases {
		bestN := -1
		best := ""
		prefix := b + "("
		for _, name := range ix.media {
			if !strings.HasPrefix(name, prefix) || !strings.EqualFold(filepath.Ext(name), ext) {
				continue
			}
			cbase := strings.TrimSuffix(name, filepath.Ext(name))
			m := counterRE.FindStringSubmatch(cbase)
			if m == nil || strings.TrimSuffix(cbase, m[0]) != b {
				continue
			}
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			// The duplicate already has its own sidecar; it is not ours.
			if ix.hasSidecar(fmt.Sprintf("%s(%d).json", title, n)) {
				continue
			}
			if bestN == -1 || n < bestN {
				bestN = n
				best = name
			}
		}
		if best != "" {
			return best, true
		}
	}
	return "", false
}

// sidecarCounter extracts the duplicate counter from a sidecar filename,
// e.g. "party.jpg(1).json" or "party(1).json" both carry counter 1.
func sidecarCounter(sidecarName string) (int, bool) {
	stem := strings.TrimSuffix(sidecarName, filepath.Ext(sidecarName))
	m := counterRE.FindStringSubmatch(stem)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
