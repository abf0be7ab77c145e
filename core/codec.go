package core

import "encoding/json"

// Persisted records are JSON-encoded. Blocks are small and infrequently
// re-encoded outside the write path, so JSON's verbosity is an acceptable
// trade for staying consistent with the rest of the repo's persistence
// code.

func encodeBlock(b *Block) []byte {
	data, err := json.Marshal(b)
	if err != nil {
		panic(err) // Block contains no unmarshalable fields
	}
	return data
}

func decodeBlock(data []byte) (*Block, error) {
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func encodeAccountInfo(info AccountInfo) []byte {
	data, err := json.Marshal(info)
	if err != nil {
		panic(err)
	}
	return data
}

func decodeAccountInfo(data []byte) (*AccountInfo, error) {
	var info AccountInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func encodePendingEntry(e PendingEntry) []byte {
	data, err := json.Marshal(e)
	if err != nil {
		panic(err)
	}
	return data
}

func decodePendingEntry(data []byte) (*PendingEntry, error) {
	var e PendingEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func encodeConfirmationHeightInfo(info ConfirmationHeightInfo) []byte {
	data, err := json.Marshal(info)
	if err != nil {
		panic(err)
	}
	return data
}

func decodeConfirmationHeightInfo(data []byte) (*ConfirmationHeightInfo, error) {
	var info ConfirmationHeightInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
