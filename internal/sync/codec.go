package sync

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mwaldrop/hearth/internal/remote"
	"github.com/mwaldrop/hearth/internal/schema"
	"github.com/mwaldrop/hearth/internal/store"
)

// refMaps carries the local-id -> sync-id translations for every
// replicated table during an upload, and is rebuilt in the opposite
// direction during a download.
type refMaps struct {
	members    map[int64]string
	assetCats  map[int64]string
	assetItems map[int64]string
	txnCats    map[int64]string
	txns       map[int64]string
}

func buildRefMaps(snap *store.Snapshot) refMaps {
	m := refMaps{
		members:    make(map[int64]string, len(snap.Members)),
		assetCats:  make(map[int64]string, len(snap.AssetCategories)),
		assetItems: make(map[int64]string, len(snap.AssetItems)),
		txnCats:    make(map[int64]string, len(snap.TransactionCategories)),
		txns:       make(map[int64]string, len(snap.Transactions)),
	}
	for _, e := range snap.Members {
		m.members[e.ID] = e.SyncID
	}
	for _, e := range snap.AssetCategories {
		m.assetCats[e.ID] = e.SyncID
	}
	for _, e := range snap.AssetItems {
		m.assetItems[e.ID] = e.SyncID
	}
	for _, e := range snap.TransactionCategories {
		m.txnCats[e.ID] = e.SyncID
	}
	for _, e := range snap.Transactions {
		m.txns[e.ID] = e.SyncID
	}
	return m
}

// toDoc flattens an entity into a remote document using its JSON shape.
// The local id is excluded by the schema types' json tags.
func toDoc(v interface{}) (remote.Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity: %w", err)
	}
	var doc remote.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to flatten entity: %w", err)
	}
	return doc, nil
}

// setRef replaces a local-id field with the referenced row's sync id, or
// removes the field when the reference is nil or points at a row the map
// does not know (a dangling weak reference).
func setRef(doc remote.Document, field string, id *int64, m map[int64]string) {
	delete(doc, field)
	if id == nil {
		return
	}
	if syncID, ok := m[*id]; ok {
		doc[field] = syncID
	}
}

// popRef extracts a sync-id valued reference field from a downloaded
// document and resolves it to a local id, dropping unresolvable
// references.
func popRef(doc remote.Document, field string, m map[string]int64) *int64 {
	raw, ok := doc[field]
	if !ok {
		return nil
	}
	delete(doc, field)
	syncID, ok := raw.(string)
	if !ok {
		return nil
	}
	if id, ok := m[syncID]; ok {
		v := id
		return &v
	}
	return nil
}

// fromDoc decodes a downloaded document into an entity struct. Reference
// fields must already have been popped by the caller.
func fromDoc(doc remote.Document, v interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to re-encode document: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// sortedIDs returns a collection's document ids in stable order so
// download assigns local ids deterministically.
func sortedIDs(coll map[string]remote.Document) []string {
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// encodeSnapshot converts a store snapshot into per-table documents keyed
// by sync id, with references to replicated tables rewritten to sync ids.
func encodeSnapshot(snap *store.Snapshot) (map[string]map[string]remote.Document, error) {
	refs := buildRefMaps(snap)
	out := make(map[string]map[string]remote.Document, len(remote.Tables))
	for _, t := range remote.Tables {
		out[t] = make(map[string]remote.Document)
	}

	for _, e := range snap.Members {
		doc, err := toDoc(e)
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", e.Name, err)
		}
		out["members"][e.SyncID] = doc
	}
	for _, e := range snap.AssetCategories {
		doc, err := toDoc(e)
		if err != nil {
			return nil, fmt.Errorf("asset category %q: %w", e.Name, err)
		}
		out["assetCategories"][e.SyncID] = doc
	}
	for _, e := range snap.AssetItems {
		doc, err := toDoc(e)
		if err != nil {
			return nil, fmt.Errorf("asset item %q: %w", e.Name, err)
		}
		setRef(doc, "memberId", e.MemberID, refs.members)
		setRef(doc, "categoryId", e.CategoryID, refs.assetCats)
		out["assetItems"][e.SyncID] = doc
	}
	for _, e := range snap.DailyValues {
		doc, err := toDoc(e)
		if err != nil {
			return nil, fmt.Errorf("daily value %s: %w", e.SyncID, err)
		}
		delete(doc, "assetItemId")
		if syncID, ok := refs.assetItems[e.AssetItemID]; ok {
			doc["assetItemId"] = syncID
		}
		out["dailyValues"][e.SyncID] = doc
	}
	for _, e := range snap.TransactionCategories {
		doc, err := toDoc(e)
		if err != nil {
			return nil, fmt.Errorf("transaction category %q: %w", e.Name, err)
		}
		out["transactionCategories"][e.SyncID] = doc
	}
	for _, e := range snap.Transactions {
		doc, err := toDoc(e)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", e.SyncID, err)
		}
		setRef(doc, "categoryId", e.CategoryID, refs.txnCats)
		setRef(doc, "memberId", e.MemberID, refs.members)
		setRef(doc, "linkedAssetItemId", e.LinkedAssetItemID, refs.assetItems)
		setRef(doc, "recurSourceId", e.RecurSourceID, refs.txns)
		out["transactions"][e.SyncID] = doc
	}

	return out, nil
}

// decodeSnapshot converts downloaded collections back into a store
// snapshot. Local ids are assigned sequentially per table in sorted
// document-id order, and sync-id references are remapped onto them.
func decodeSnapshot(colls map[string]map[string]remote.Document) (*store.Snapshot, error) {
	snap := &store.Snapshot{}

	memberIDs := make(map[string]int64)
	assetCatIDs := make(map[string]int64)
	assetItemIDs := make(map[string]int64)
	txnCatIDs := make(map[string]int64)
	txnIDs := make(map[string]int64)

	for i, docID := range sortedIDs(colls["members"]) {
		var e schema.Member
		if err := fromDoc(colls["members"][docID], &e); err != nil {
			return nil, fmt.Errorf("member %s: %w", docID, err)
		}
		e.ID = int64(i + 1)
		e.SyncID = docID
		memberIDs[docID] = e.ID
		snap.Members = append(snap.Members, &e)
	}

	for i, docID := range sortedIDs(colls["assetCategories"]) {
		var e schema.AssetCategory
		if err := fromDoc(colls["assetCategories"][docID], &e); err != nil {
			return nil, fmt.Errorf("asset category %s: %w", docID, err)
		}
		e.ID = int64(i + 1)
		e.SyncID = docID
		assetCatIDs[docID] = e.ID
		snap.AssetCategories = append(snap.AssetCategories, &e)
	}

	for i, docID := range sortedIDs(colls["assetItems"]) {
		doc := colls["assetItems"][docID]
		memberID := popRef(doc, "memberId", memberIDs)
		categoryID := popRef(doc, "categoryId", assetCatIDs)
		var e schema.AssetItem
		if err := fromDoc(doc, &e); err != nil {
			return nil, fmt.Errorf("asset item %s: %w", docID, err)
		}
		e.ID = int64(i + 1)
		e.SyncID = docID
		e.MemberID = memberID
		e.CategoryID = categoryID
		assetItemIDs[docID] = e.ID
		snap.AssetItems = append(snap.AssetItems, &e)
	}

	for i, docID := range sortedIDs(colls["dailyValues"]) {
		doc := colls["dailyValues"][docID]
		itemID := popRef(doc, "assetItemId", assetItemIDs)
		var e schema.DailyValue
		if err := fromDoc(doc, &e); err != nil {
			return nil, fmt.Errorf("daily value %s: %w", docID, err)
		}
		if itemID == nil {
			// Orphaned value: its item never reached the cloud. Skip
			// rather than fail the whole download.
			continue
		}
		e.ID = int64(i + 1)
		e.SyncID = docID
		e.AssetItemID = *itemID
		snap.DailyValues = append(snap.DailyValues, &e)
	}

	for i, docID := range sortedIDs(colls["transactionCategories"]) {
		var e schema.TransactionCategory
		if err := fromDoc(colls["transactionCategories"][docID], &e); err != nil {
			return nil, fmt.Errorf("transaction category %s: %w", docID, err)
		}
		e.ID = int64(i + 1)
		e.SyncID = docID
		txnCatIDs[docID] = e.ID
		snap.TransactionCategories = append(snap.TransactionCategories, &e)
	}

	// Transactions may reference each other through recurSourceId, so ids
	// for the whole table are assigned before any reference is resolved.
	txnDocIDs := sortedIDs(colls["transactions"])
	for i, docID := range txnDocIDs {
		txnIDs[docID] = int64(i + 1)
	}
	for i, docID := range txnDocIDs {
		doc := colls["transactions"][docID]
		categoryID := popRef(doc, "categoryId", txnCatIDs)
		memberID := popRef(doc, "memberId", memberIDs)
		linkedID := popRef(doc, "linkedAssetItemId", assetItemIDs)
		recurSourceID := popRef(doc, "recurSourceId", txnIDs)
		var e schema.Transaction
		if err := fromDoc(doc, &e); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", docID, err)
		}
		e.ID = int64(i + 1)
		e.SyncID = docID
		e.CategoryID = categoryID
		e.MemberID = memberID
		e.LinkedAssetItemID = linkedID
		e.RecurSourceID = recurSourceID
		snap.Transactions = append(snap.Transactions, &e)
	}

	return snap, nil
}
