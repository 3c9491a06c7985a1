package auditlog

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/inventoryhub/internal/app/store/logs"
	"github.com/dalemusser/inventoryhub/internal/app/system/paging"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const dateLayout = "2006-01-02"

var errBadDate = errors.New("dates must be YYYY-MM-DD")

// filterFrom builds the query for one group from the request's "user",
// "start_date" and "end_date" parameters and its page. An end date covers
// the whole day.
func filterFrom(r *http.Request, gid primitive.ObjectID, p paging.Page) (logs.QueryFilter, error) {
	f := logs.QueryFilter{GroupID: &gid, Limit: p.Limit(), Offset: p.Offset()}

	if s := strings.TrimSpace(query.Get(r, "user")); s != "" {
		uid, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return logs.QueryFilter{}, errors.New("user must be an id")
		}
		f.UserID = &uid
	}
	if s := strings.TrimSpace(query.Get(r, "start_date")); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return logs.QueryFilter{}, errBadDate
		}
		f.StartTime = &t
	}
	if s := strings.TrimSpace(query.Get(r, "end_date")); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return logs.QueryFilter{}, errBadDate
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.EndTime = &end
	}
	if f.StartTime != nil && f.EndTime != nil && f.EndTime.Before(*f.StartTime) {
		return logs.QueryFilter{}, errors.New("end_date is before start_date")
	}
	return f, nil
}
