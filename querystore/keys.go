package querystore

import "strconv"

func valueKey(id uint32) string                { return "sq:doc:value:" + itoa(id) }
func updatedAtKey(id uint32) string             { return "sq:doc:updatedAt:" + itoa(id) }
func refIdsKey(id uint32) string                { return "sq:doc:refIds:" + itoa(id) }
func refCountKey(id uint32) string              { return "sq:doc:refCount:" + itoa(id) }
func streamOrphanRefsKey(id uint32) string      { return "sq:doc:streamOrphanRefs:" + itoa(id) }
func optimisticInsertRefsKey(id uint32) string  { return "sq:doc:optimisticInsertRefs:" + itoa(id) }
func entityRefsKey(id uint32) string            { return "sq:doc:entityRefs:" + itoa(id) }
func queueKey(queryDefID string) string         { return "sq:doc:queue:" + queryDefID }

func itoa(id uint32) string { return strconv.FormatUint(uint64(id), 10) }
