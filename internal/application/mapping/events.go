package mapping

import (
	"time"

	"github.com/turtacn/LightMap-Intelligence/internal/domain/dictionary"
	layouttypes "github.com/turtacn/LightMap-Intelligence/pkg/types/layout"
	mappingtypes "github.com/turtacn/LightMap-Intelligence/pkg/types/mapping"
)

// FinalizedMapping is the user-reviewed outcome for one session: the
// destination each source element ended up with, keyed by source name.  An
// empty or missing destination means the user left the element unmapped.
type FinalizedMapping map[string]string

// DeriveSessionEvents converts the pre-review result and the user-finalized
// mapping into dictionary session events.  Provenance follows how the final
// destination relates to the suggestion:
//
//   - the engine suggested nothing and the user picked one → user_manual
//   - the user kept the suggestion → auto_confirmed
//   - the user picked a different destination → user_correction
//
// Elements the user left unmapped still yield an event with an empty
// destination; the dictionary store filters those at write time.
func DeriveSessionEvents(
	original *mappingtypes.Result,
	finalized FinalizedMapping,
	source, dest *layouttypes.Inventory,
	now time.Time,
) []*mappingtypes.SessionEvent {
	if original == nil {
		return nil
	}
	if source == nil {
		source = layouttypes.NewInventory(nil)
	}
	if dest == nil {
		dest = layouttypes.NewInventory(nil)
	}
	events := make([]*mappingtypes.SessionEvent, 0, len(original.Pairs))
	for _, pair := range original.Pairs {
		finalDest := finalized[pair.SourceName]
		ev := &mappingtypes.SessionEvent{
			SessionID:  original.SessionID,
			SourceName: pair.SourceName,
			DestName:   finalDest,
			Vendor:     dictionary.DetectVendor(pair.SourceName),
			OccurredAt: now,
		}
		if src := source.Get(pair.SourceName); src != nil {
			ev.SourceKind = string(src.Kind)
			ev.SourcePixels = src.PixelCount
		}
		if dst := dest.Get(finalDest); dst != nil {
			ev.DestKind = string(dst.Kind)
			ev.DestPixels = dst.PixelCount
		}

		switch {
		case pair.DestName == "":
			ev.Source = mappingtypes.SourceUserManual
		case dictionary.SameDest(pair.DestName, finalDest):
			ev.Source = mappingtypes.SourceAutoConfirmed
		default:
			ev.Source = mappingtypes.SourceUserCorrection
			ev.SuggestedDest = pair.DestName
		}
		events = append(events, ev)
	}
	return events
}
