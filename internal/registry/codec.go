package registry

import (
	"encoding/json"
	"time"

	"github.com/localdns/syncd/internal/dnserrors"
	"github.com/localdns/syncd/internal/dnsrecord"
)

// document is the on-the-wire shape of a registry value: enough to
// reconstruct a dnsrecord.Intent and to attribute the entry to a host and
// container for ownership checks and operator diagnostics.
type document struct {
	Host               string    `json:"host"`
	RecordType         string    `json:"record_type"`
	OwnerHostname      string    `json:"owner_hostname"`
	OwnerContainerName string    `json:"owner_container_name"`
	Created            time.Time `json:"created"`
}

// EncodeValue renders intent as the JSON document stored at its registry
// key. The record name itself is not duplicated in the value -- it is
// recoverable from the key via NameForKey.
func EncodeValue(intent dnsrecord.Intent) ([]byte, error) {
	switch intent.Record.Type {
	case dnsrecord.TypeA, dnsrecord.TypeCNAME:
	default:
		return nil, unsupportedRecordType(intent.Record.Type)
	}
	doc := document{
		Host:               intent.Record.Value,
		RecordType:         string(intent.Record.Type),
		OwnerHostname:      intent.Hostname,
		OwnerContainerName: intent.ContainerName,
		Created:            intent.Created,
	}
	return json.Marshal(doc)
}

// DecodeValue parses a registry value previously written by EncodeValue,
// recovering the record name from key (stripped of prefix). A malformed
// document or unrecognized record type is reported via dnserrors.ParseError
// so callers can skip the entry rather than abort the whole scan.
func DecodeValue(prefix, key string, value []byte) (dnsrecord.Intent, error) {
	var doc document
	if err := json.Unmarshal(value, &doc); err != nil {
		return dnsrecord.Intent{}, dnserrors.ParseError(key, err)
	}

	if doc.Host == "" {
		return dnsrecord.Intent{}, dnserrors.ParseError(key, dnserrors.ErrParse)
	}

	var rt dnsrecord.Type
	switch doc.RecordType {
	case string(dnsrecord.TypeA):
		rt = dnsrecord.TypeA
	case string(dnsrecord.TypeCNAME):
		rt = dnsrecord.TypeCNAME
	default:
		return dnsrecord.Intent{}, dnserrors.ParseError(key, unsupportedRecordType(dnsrecord.Type(doc.RecordType)))
	}

	name := NameForKey(prefix, key)
	if name == "" {
		return dnsrecord.Intent{}, dnserrors.ParseError(key, dnserrors.ErrParse)
	}

	return dnsrecord.Intent{
		Record:        dnsrecord.Record{Type: rt, Name: name, Value: doc.Host},
		Hostname:      doc.OwnerHostname,
		ContainerName: doc.OwnerContainerName,
		Created:       doc.Created,
	}, nil
}
