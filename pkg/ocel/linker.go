package ocel

import "encoding/json"

// DeriveLinks builds the flat (event, object, qualifier) association table:
// the union of explicit event-object relation rows and links extracted from
// raw event payloads, de-duplicated by the full triple. Output order is not
// part of the contract; consumers must treat the result as a set-valued index.
func DeriveLinks(explicit []Link, events []Event) []Link {
	type key struct{ event, object, qualifier string }

	var out []Link
	byEvent := make(map[string][]Link, len(events))
	for _, l := range explicit {
		byEvent[l.EventID] = append(byEvent[l.EventID], l)
	}

	for _, ev := range events {
		seen := map[key]bool{}
		for _, l := range byEvent[ev.ID] {
			k := key{ev.ID, l.ObjectID, l.Qualifier}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, Link{EventID: ev.ID, ObjectID: l.ObjectID, Qualifier: l.Qualifier})
		}
		for _, pl := range extractPayloadLinks(ev.RawPayload) {
			k := key{ev.ID, pl.ObjectID, pl.Qualifier}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, Link{EventID: ev.ID, ObjectID: pl.ObjectID, Qualifier: pl.Qualifier})
		}
	}
	return out
}

type payloadLink struct {
	ObjectID  string
	Qualifier string
}

// extractPayloadLinks best-effort parses object references embedded in a raw
// event payload. Two shapes are supported: a list of bare object ids under
// "linked_object_ids" or "ocel_objects", and a list of strings or
// {id|ocel_id, qualifier|ocel_qualifier} records under "objects". Anything
// unparsable yields no links.
func extractPayloadLinks(raw string) []payloadLink {
	if raw == "" {
		return nil
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}

	var links []payloadLink
	for _, field := range []string{"linked_object_ids", "ocel_objects"} {
		data, ok := payload[field]
		if !ok {
			continue
		}
		var ids []string
		if err := json.Unmarshal(data, &ids); err == nil && len(ids) > 0 {
			for _, id := range ids {
				links = append(links, payloadLink{ObjectID: id})
			}
			break
		}
	}

	if data, ok := payload["objects"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err == nil {
			for _, item := range items {
				var id string
				if err := json.Unmarshal(item, &id); err == nil {
					links = append(links, payloadLink{ObjectID: id})
					continue
				}
				var rec struct {
					ID            string `json:"id"`
					OCELID        string `json:"ocel_id"`
					Qualifier     string `json:"qualifier"`
					OCELQualifier string `json:"ocel_qualifier"`
				}
				if err := json.Unmarshal(item, &rec); err != nil {
					continue
				}
				objID := rec.ID
				if objID == "" {
					objID = rec.OCELID
				}
				qualifier := rec.Qualifier
				if qualifier == "" {
					qualifier = rec.OCELQualifier
				}
				if objID != "" {
					links = append(links, payloadLink{ObjectID: objID, Qualifier: qualifier})
				}
			}
		}
	}
	return links
}
