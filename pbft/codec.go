package pbft

import (
	tmjson "github.com/tendermint/tendermint/libs/json"
)

// encodeJSON/decodeJSON are the wire codec for all four message kinds and
// for the committed-prepare backup record.
func encodeJSON(v interface{}) ([]byte, error) {
	return tmjson.Marshal(v)
}

func decodeJSON(data []byte, v interface{}) error {
	return tmjson.Unmarshal(data, v)
}
