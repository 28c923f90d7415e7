package timezone

import (
	"time"
	_ "time/tzdata"
)

// Location is where bulletins are published, the month of a bulletin rolls
// over in this zone and not in the zone of the machine running the tracker.
var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
}

func In(t time.Time) time.Time {
	return t.In(Location)
}
