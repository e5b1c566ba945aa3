package domain

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Closed enums are stored as plain strings in both JSON and BSON.

func marshalEnumBSON(value string) (bsontype.Type, []byte, error) {
	return bson.MarshalValue(value)
}

func unmarshalEnumBSON(t bsontype.Type, data []byte) (string, error) {
	if t == bsontype.Null || t == bsontype.Undefined {
		return "", nil
	}
	s, ok := bson.RawValue{Type: t, Value: data}.StringValueOK()
	if !ok {
		return "", fmt.Errorf("expected string enum, got BSON %s", t)
	}
	return s, nil
}
