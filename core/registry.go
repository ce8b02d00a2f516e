package core

import (
	"fmt"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// MaxAssetNameLength bounds display names, in runes.
const MaxAssetNameLength = 128

// CreateAsset registers a new asset owned by owner and appends it to the
// owner's index.
func (e *Engine) CreateAsset(owner AccountID, name string) (*Asset, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > MaxAssetNameLength {
		return nil, fmt.Errorf("%w: asset name longer than %d characters", ErrInvalidInput, MaxAssetNameLength)
	}

	al, err := e.allocate(owner)
	if err != nil {
		return nil, fmt.Errorf("allocate asset id: %w", err)
	}
	al.Commit()

	asset := &Asset{ID: al.ID, Name: name}
	e.st.assets[asset.ID] = asset
	e.appendToOwner(asset, owner)

	e.log.WithFields(logrus.Fields{"asset_id": asset.ID, "owner": owner}).Info("asset created")
	e.emit(Event{Kind: EventAssetCreated, Owner: owner, AssetID: asset.ID, Name: name})

	return asset.clone(), nil
}

// Asset returns a copy of the asset record.
func (e *Engine) Asset(id Hash) (*Asset, error) {
	asset, ok := e.st.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	return asset.clone(), nil
}

// AssetsOf returns the owner's asset ids in index order.
func (e *Engine) AssetsOf(owner AccountID) []Hash {
	count := e.st.ownerCount[owner]
	ids := make([]Hash, 0, count)
	slots := e.st.ownerIndex[owner]
	for pos := uint64(0); pos < count; pos++ {
		ids = append(ids, slots[pos])
	}
	return ids
}

// transferOwnership moves the asset into newOwner's index and clears its
// auction flag. The asset must exist; callers validate that before any other
// mutation so this step cannot fail halfway.
func (e *Engine) transferOwnership(assetID Hash, newOwner AccountID) {
	asset := e.st.assets[assetID]
	if asset.Owner != nil {
		e.removeFromOwner(asset)
	}
	e.appendToOwner(asset, newOwner)
	asset.InAuction = false
}

// setInAuction toggles the asset's auction flag.
func (e *Engine) setInAuction(assetID Hash, flag bool) error {
	asset, ok := e.st.assets[assetID]
	if !ok {
		return fmt.Errorf("asset %s: %w", assetID, ErrNotFound)
	}
	asset.InAuction = flag
	return nil
}

func (e *Engine) appendToOwner(asset *Asset, owner AccountID) {
	pos := e.st.ownerCount[owner]
	slots, ok := e.st.ownerIndex[owner]
	if !ok {
		slots = make(map[uint64]Hash)
		e.st.ownerIndex[owner] = slots
	}
	slots[pos] = asset.ID
	e.st.ownerCount[owner] = pos + 1

	o := owner
	asset.Owner = &o
	asset.OwnerPos = &pos
}

// removeFromOwner vacates the asset's slot by moving the owner's last asset
// into it, keeping the index dense.
func (e *Engine) removeFromOwner(asset *Asset) {
	owner := *asset.Owner
	pos := *asset.OwnerPos
	slots := e.st.ownerIndex[owner]
	last := e.st.ownerCount[owner] - 1

	if pos != last {
		movedID := slots[last]
		slots[pos] = movedID
		moved := e.st.assets[movedID]
		movedPos := pos
		moved.OwnerPos = &movedPos
	}
	delete(slots, last)

	if last == 0 {
		delete(e.st.ownerIndex, owner)
		delete(e.st.ownerCount, owner)
	} else {
		e.st.ownerCount[owner] = last
	}

	asset.Owner = nil
	asset.OwnerPos = nil
}
