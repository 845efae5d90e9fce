// Package ingest holds types shared by the workout importers.
package ingest

// Result holds the outcome of an ingest operation.
type Result struct {
	WorkoutsReceived   int `json:"workouts_received"`
	WorkoutsInserted   int `json:"workouts_inserted"`
	WorkoutsDuplicated int `json:"workouts_duplicated"`

	SetsReceived    int `json:"sets_received"`
	LiftsRecorded   int `json:"lifts_recorded"`
	PersonalRecords int `json:"personal_records"`

	Message string `json:"message,omitempty"`
}
