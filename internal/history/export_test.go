package history

// RecordKey exposes the storage key to the external tests
const RecordKey = recordKey
