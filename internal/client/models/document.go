package models

import "time"

// Checkpoint marks how far a document has been synchronized.
type Checkpoint struct {
	LastSyncTime      *time.Time
	LastPulledVersion int64
}

// Document is the persisted unit: all records of one kind in one home plus
// the sync checkpoint.
type Document struct {
	Records           []*Record  `json:"records"`
	LastSyncTime      *time.Time `json:"lastSyncTime,omitempty"`
	LastPulledVersion int64      `json:"lastPulledVersion"`
}

func NewDocument() *Document {
	return &Document{Records: []*Record{}}
}

func (d *Document) Checkpoint() Checkpoint {
	return Checkpoint{LastSyncTime: cloneTime(d.LastSyncTime), LastPulledVersion: d.LastPulledVersion}
}

func (d *Document) SetCheckpoint(c Checkpoint) {
	d.LastSyncTime = cloneTime(c.LastSyncTime)
	d.LastPulledVersion = c.LastPulledVersion
}

// Find returns the record with id, or nil.
func (d *Document) Find(id string) *Record {
	for _, r := range d.Records {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Put replaces the record with the same id or appends it.
func (d *Document) Put(rec *Record) {
	for i, r := range d.Records {
		if r.ID == rec.ID {
			d.Records[i] = rec
			return
		}
	}
	d.Records = append(d.Records, rec)
}

// Remove drops the record with id and reports whether it was present.
func (d *Document) Remove(id string) bool {
	for i, r := range d.Records {
		if r.ID == id {
			d.Records = append(d.Records[:i], d.Records[i+1:]...)
			return true
		}
	}
	return false
}

// Pending returns copies of every record eligible for push.
func (d *Document) Pending() []*Record {
	var out []*Record
	for _, r := range d.Records {
		if r.IsPending() {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Heal repairs records that lost their sync state and reports whether
// anything changed:
//   - pendingCreate dominates pendingUpdate;
//   - a live record never confirmed by the server and carrying no pending
//     flag is marked pendingCreate;
//   - a tombstone the server never knew about is dropped.
func (d *Document) Heal() bool {
	changed := false
	kept := d.Records[:0]
	for _, r := range d.Records {
		if r.PendingCreate && r.PendingUpdate {
			r.PendingUpdate = false
			changed = true
		}
		if r.NeverSynced() && !r.IsPending() {
			if r.IsDeleted() {
				changed = true
				continue
			}
			r.PendingCreate = true
			changed = true
		}
		kept = append(kept, r)
	}
	d.Records = kept
	return changed
}

func (d *Document) Clone() *Document {
	c := &Document{
		Records:           make([]*Record, 0, len(d.Records)),
		LastSyncTime:      cloneTime(d.LastSyncTime),
		LastPulledVersion: d.LastPulledVersion,
	}
	for _, r := range d.Records {
		c.Records = append(c.Records, r.Clone())
	}
	return c
}
