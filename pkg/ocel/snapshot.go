package ocel

import (
	"context"
	"database/sql"
	"fmt"
)

// Snapshot is a read-only view of one log, loaded once per pipeline run.
type Snapshot struct {
	events     map[string]Event
	eventOrder []string
	objects    map[string]Object
	relations  []Relation
	links      []Link

	linksByEvent  map[string][]Link
	linksByObject map[string][]Link
	relsByObject  map[string][]int
}

// NewSnapshot assembles a snapshot from raw rows, deriving the normalized
// event-object link table from the explicit rows plus payload extraction.
func NewSnapshot(events []Event, objects []Object, relations []Relation, explicitLinks []Link) *Snapshot {
	s := &Snapshot{
		events:        make(map[string]Event, len(events)),
		eventOrder:    make([]string, 0, len(events)),
		objects:       make(map[string]Object, len(objects)),
		relations:     relations,
		linksByEvent:  map[string][]Link{},
		linksByObject: map[string][]Link{},
		relsByObject:  map[string][]int{},
	}
	for _, ev := range events {
		if _, dup := s.events[ev.ID]; !dup {
			s.eventOrder = append(s.eventOrder, ev.ID)
		}
		s.events[ev.ID] = ev
	}
	for _, obj := range objects {
		s.objects[obj.ID] = obj
	}
	s.links = DeriveLinks(explicitLinks, events)
	for _, l := range s.links {
		s.linksByEvent[l.EventID] = append(s.linksByEvent[l.EventID], l)
		s.linksByObject[l.ObjectID] = append(s.linksByObject[l.ObjectID], l)
	}
	for i, r := range relations {
		s.relsByObject[r.SourceID] = append(s.relsByObject[r.SourceID], i)
		if r.TargetID != r.SourceID {
			s.relsByObject[r.TargetID] = append(s.relsByObject[r.TargetID], i)
		}
	}
	return s
}

// Load reads the materialized log tables into a snapshot.
func Load(ctx context.Context, db *sql.DB) (*Snapshot, error) {
	objects, err := loadObjects(ctx, db)
	if err != nil {
		return nil, err
	}
	relations, err := loadRelations(ctx, db)
	if err != nil {
		return nil, err
	}
	links, err := loadEventObjectRows(ctx, db)
	if err != nil {
		return nil, err
	}
	events, err := loadEvents(ctx, db)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(events, objects, relations, links), nil
}

// Event resolves an event by id.
func (s *Snapshot) Event(id string) (Event, bool) {
	ev, ok := s.events[id]
	return ev, ok
}

// Events returns all events in load order.
func (s *Snapshot) Events() []Event {
	out := make([]Event, 0, len(s.eventOrder))
	for _, id := range s.eventOrder {
		out = append(out, s.events[id])
	}
	return out
}

// ObjectType returns the type of an object, or "" when unknown.
func (s *Snapshot) ObjectType(id string) string {
	return s.objects[id].Type
}

// Objects returns all known objects.
func (s *Snapshot) Objects() []Object {
	out := make([]Object, 0, len(s.objects))
	for _, obj := range s.objects {
		out = append(out, obj)
	}
	return out
}

// Links returns the derived event-object association table.
func (s *Snapshot) Links() []Link { return s.links }

// LinksByEvent returns the links of one event.
func (s *Snapshot) LinksByEvent(eventID string) []Link { return s.linksByEvent[eventID] }

// LinksByObject returns the links of one object.
func (s *Snapshot) LinksByObject(objectID string) []Link { return s.linksByObject[objectID] }

// Relations returns all explicit object-object relation rows.
func (s *Snapshot) Relations() []Relation { return s.relations }

// RelationsTouching returns every relation row with at least one endpoint in
// the given object set. Rows are returned in table order, without duplicates.
func (s *Snapshot) RelationsTouching(objectIDs map[string]bool) []Relation {
	seen := map[int]bool{}
	var idxs []int
	for id := range objectIDs {
		for _, i := range s.relsByObject[id] {
			if !seen[i] {
				seen[i] = true
				idxs = append(idxs, i)
			}
		}
	}
	// restore table order
	for i := 1; i < len(idxs); i++ {
		for j := i; j > 0 && idxs[j] < idxs[j-1]; j-- {
			idxs[j], idxs[j-1] = idxs[j-1], idxs[j]
		}
	}
	out := make([]Relation, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.relations[i])
	}
	return out
}

func loadObjects(ctx context.Context, db *sql.DB) ([]Object, error) {
	rows, err := db.QueryContext(ctx, `SELECT ocel_id, ocel_type FROM object`)
	if err != nil {
		return nil, fmt.Errorf("ocel: load objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Object
	for rows.Next() {
		var obj Object
		if err := rows.Scan(&obj.ID, &obj.Type); err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, rows.Err()
}

func loadRelations(ctx context.Context, db *sql.DB) ([]Relation, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT ocel_source_id, ocel_target_id, ocel_qualifier FROM object_object`)
	if err != nil {
		return nil, fmt.Errorf("ocel: load object relations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Relation
	for rows.Next() {
		var rel Relation
		var qualifier sql.NullString
		if err := rows.Scan(&rel.SourceID, &rel.TargetID, &qualifier); err != nil {
			return nil, err
		}
		rel.Qualifier = qualifier.String
		out = append(out, rel)
	}
	return out, rows.Err()
}

func loadEventObjectRows(ctx context.Context, db *sql.DB) ([]Link, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT ocel_event_id, ocel_object_id, ocel_qualifier FROM event_object`)
	if err != nil {
		return nil, fmt.Errorf("ocel: load event-object rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Link
	for rows.Next() {
		var l Link
		var qualifier sql.NullString
		if err := rows.Scan(&l.EventID, &l.ObjectID, &qualifier); err != nil {
			return nil, err
		}
		l.Qualifier = qualifier.String
		out = append(out, l)
	}
	return out, rows.Err()
}

func loadEvents(ctx context.Context, db *sql.DB) ([]Event, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT event_id, activity, ts, resource, lifecycle, raw FROM v_events_unified`)
	if err != nil {
		return nil, fmt.Errorf("ocel: load events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var ev Event
		var resource, lifecycle, raw sql.NullString
		if err := rows.Scan(&ev.ID, &ev.Activity, &ev.TS, &resource, &lifecycle, &raw); err != nil {
			return nil, err
		}
		ev.Resource = resource.String
		ev.Lifecycle = lifecycle.String
		ev.RawPayload = raw.String
		out = append(out, ev)
	}
	return out, rows.Err()
}
