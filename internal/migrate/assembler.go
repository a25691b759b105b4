package migrate

import (
	"fmt"
	"sort"

	"github.com/specbook/internal/xlsxpkg"
	"github.com/specbook/pkg/models"
)

// PlaceholderBody is the fixed body of every legacy shadow comment. Legacy
// comments cannot express threading, so the shadow only signals that a
// discussion exists on the cell.
const PlaceholderBody = "This cell holds a threaded discussion."

// Assemble writes every placed thread into the destination package: the rich
// threaded record per message, one legacy shadow per newly commented cell,
// and a participant-directory entry per referenced author. The overlay
// shapes are derived from the shadows when the package is saved. Every
// representation of a thread is keyed by the same fresh root identifier;
// spreadsheet clients reject the file when the keys disagree.
//
// Shadows and directory entries are appended to whatever the destination
// already carries, so assembling into a part-populated workbook keeps its
// existing discussions intact.
func Assemble(dest *xlsxpkg.Package, outcomes []*models.MigrationOutcome, directory map[string]models.Participant, newID func() string) error {
	if newID == nil {
		newID = NewCommentID
	}
	rebuilt := RebuildThreads(outcomes, newID)
	if len(rebuilt) == 0 {
		return nil
	}

	perSheet := make(map[string][]xlsxpkg.ThreadedComment)
	shadows := make(map[string][]xlsxpkg.LegacyComment)
	shadowed := make(map[string]map[string]bool)
	var sheetOrder []string
	referenced := make(map[string]bool)
	unknownPersonID := ""

	for i := range rebuilt {
		rm := &rebuilt[i]
		sheet, ref := rm.Message.Destination()
		if _, ok := dest.Sheet(sheet); !ok {
			return fmt.Errorf("destination sheet %q vanished before assembly", sheet)
		}
		if _, seen := perSheet[sheet]; !seen {
			sheetOrder = append(sheetOrder, sheet)
			shadowed[sheet] = make(map[string]bool)
			for _, lc := range dest.LegacyComments(sheet) {
				shadowed[sheet][lc.Ref] = true
			}
		}

		personID := rm.Message.PersonID
		if personID == "" {
			if unknownPersonID == "" {
				unknownPersonID = newID()
			}
			personID = unknownPersonID
		}
		referenced[personID] = true

		perSheet[sheet] = append(perSheet[sheet], xlsxpkg.ThreadedComment{
			Ref:      ref,
			ID:       rm.NewID,
			ParentID: rm.NewParent,
			PersonID: personID,
			Time:     rm.Message.CreatedAt,
			Text:     rm.Message.Body,
		})

		if rm.NewParent == "" && !shadowed[sheet][ref] {
			shadowed[sheet][ref] = true
			shadows[sheet] = append(shadows[sheet], xlsxpkg.LegacyComment{
				Ref:    ref,
				Author: xlsxpkg.LegacyAuthor(rm.NewID),
				Text:   PlaceholderBody,
			})
		}
	}

	for _, sheet := range sheetOrder {
		merged := append(dest.ThreadedComments(sheet), perSheet[sheet]...)
		if err := dest.SetThreadedComments(sheet, merged); err != nil {
			return fmt.Errorf("failed to assemble threaded comments: %w", err)
		}
		if len(shadows[sheet]) > 0 {
			withNew := append(dest.LegacyComments(sheet), shadows[sheet]...)
			if err := dest.SetLegacyComments(sheet, withNew); err != nil {
				return fmt.Errorf("failed to assemble legacy comments: %w", err)
			}
		}
	}

	dest.SetPersons(mergePersons(dest.Persons(), referenced, directory))
	return nil
}

// mergePersons keeps the destination's existing directory and adds an entry
// for every newly referenced author, copied from the source directory when
// present, synthesized with a default display name otherwise. The result is
// sorted by display name, then identifier.
func mergePersons(existing []xlsxpkg.Person, referenced map[string]bool, directory map[string]models.Participant) []xlsxpkg.Person {
	byID := make(map[string]xlsxpkg.Person, len(existing)+len(referenced))
	for _, p := range existing {
		byID[p.ID] = p
	}
	for id := range referenced {
		if _, ok := byID[id]; ok {
			continue
		}
		person := xlsxpkg.Person{ID: id, DisplayName: unknownParticipantName, ProviderID: "None"}
		if src, ok := directory[id]; ok {
			person.DisplayName = src.DisplayName
			person.UserID = src.UserID
			person.ProviderID = src.Provider
			if person.DisplayName == "" {
				person.DisplayName = unknownParticipantName
			}
			if person.ProviderID == "" {
				person.ProviderID = "None"
			}
		}
		byID[id] = person
	}

	out := make([]xlsxpkg.Person, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].ID < out[j].ID
	})
	return out
}
