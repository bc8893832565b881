package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/importer"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

// asStored renders values the way Redis returns them.
func asStored(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = fmt.Sprint(v)
	}
	return out
}

var _ = Describe("RunEvent", func() {
	started := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)

	It("summarizes a run report", func() {
		report := &importer.RunReport{
			RunID:       "7sJx",
			Since:       started.Add(-24 * time.Hour),
			StartedAt:   started,
			CompletedAt: started.Add(3 * time.Minute),
			Walkers: []importer.WalkerReport{
				{ImportType: model.ImportTypeProjects, State: importer.StateCompleted, Pages: []importer.PageReport{{Persisted: 3}}},
				{ImportType: model.ImportTypeIssues, State: importer.StateFailed, Err: errors.New("boom"), Pages: []importer.PageReport{{Persisted: 2}}},
			},
		}

		ev := EventFromReport(report)
		Expect(ev.Walkers).To(Equal(2))
		Expect(ev.FailedWalkers).To(Equal(1))
		Expect(ev.Persisted).To(Equal(5))
		Expect(ev.WatermarkAdvanced).To(BeFalse())

		parsed, err := ParseRunEvent(redis.XMessage{ID: "1714543380000-0", Values: asStored(eventValues(ev))})
		Expect(err).NotTo(HaveOccurred())
		ev.ID = "1714543380000-0"
		Expect(parsed).To(Equal(ev))
	})

	It("rejects entries without a run id or timestamps", func() {
		_, err := ParseRunEvent(redis.XMessage{ID: "1-0", Values: map[string]any{"since": "2024-05-01T00:00:00Z"}})
		Expect(err).To(MatchError(ContainSubstring("run_id")))

		_, err = ParseRunEvent(redis.XMessage{ID: "1-0", Values: map[string]any{"run_id": "r", "since": "yesterday"}})
		Expect(err).To(MatchError(ContainSubstring("since")))
	})
})
