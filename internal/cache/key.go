// Package cache memoises read queries per warehouse and drops them again when
// a write makes them stale. Keys are grouped by entity so that one write can
// clear every view of that entity for a warehouse with a single prefix.
package cache

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Entity string

const (
	Customers    Entity = "customers"
	Products     Entity = "products"
	StorageLots  Entity = "storage_lots"
	Warehouses   Entity = "warehouses"
	Transactions Entity = "transactions"
	Payments     Entity = "payments"
	Dashboard    Entity = "dashboard"
)

// Views of an entity. Each one has its own TTL.
const (
	ViewList          = "list"
	ViewDetail        = "detail"
	ViewSearch        = "search"
	ViewByStatus      = "status"
	ViewByCategory    = "category"
	ViewOutstanding   = "outstanding"
	ViewToday         = "today"
	ViewByCustomer    = "customer"
	ViewActiveInflows = "active_inflows"
	ViewAvailable     = "available"
	ViewUtilization   = "utilization"
	ViewTotal         = "total"
	ViewDefault       = "default"
	ViewStats         = "stats"
	ViewReport        = "report"
)

// GlobalScope stands in for the warehouse of unscoped rows (global catalog
// products, the warehouse list).
const GlobalScope = "global"

const DefaultTTL = 5 * time.Minute

var ttlTable = map[Entity]map[string]time.Duration{
	Customers: {
		ViewList: 5 * time.Minute, ViewDetail: 5 * time.Minute, ViewByStatus: 5 * time.Minute,
		ViewOutstanding: 5 * time.Minute, ViewSearch: 2 * time.Minute,
	},
	Products: {
		ViewList: 5 * time.Minute, ViewDetail: 5 * time.Minute, ViewByCategory: 5 * time.Minute,
		ViewSearch: 2 * time.Minute,
	},
	StorageLots: {
		ViewList: 5 * time.Minute, ViewDetail: 5 * time.Minute,
		ViewAvailable: time.Minute, ViewUtilization: 2 * time.Minute,
	},
	Warehouses: {
		ViewList: 5 * time.Minute, ViewDetail: 5 * time.Minute, ViewDefault: 10 * time.Minute,
	},
	Transactions: {
		ViewList: time.Minute, ViewDetail: time.Minute, ViewActiveInflows: time.Minute,
		ViewByCustomer: time.Minute,
	},
	Payments: {
		ViewList: 2 * time.Minute, ViewDetail: 5 * time.Minute, ViewByCustomer: 5 * time.Minute,
		ViewToday: time.Minute, ViewOutstanding: 2 * time.Minute, ViewTotal: 2 * time.Minute,
	},
	Dashboard: {
		ViewStats: time.Minute, ViewReport: 2 * time.Minute,
	},
}

// Key identifies one cached query: entity:warehouse:view[:part...].
type Key struct {
	Entity    Entity
	Warehouse string
	View      string
	Parts     []string
}

func NewKey(entity Entity, warehouseID uuid.UUID, view string, parts ...string) Key {
	return Key{Entity: entity, Warehouse: scopeOf(warehouseID), View: view, Parts: parts}
}

// GlobalKey builds a key for rows that do not belong to one warehouse.
func GlobalKey(entity Entity, view string, parts ...string) Key {
	return Key{Entity: entity, Warehouse: GlobalScope, View: view, Parts: parts}
}

func (k Key) String() string {
	segs := append([]string{string(k.Entity), k.Warehouse, k.View}, k.Parts...)
	for i, s := range segs {
		segs[i] = strings.ReplaceAll(strings.ToLower(s), ":", "_")
	}
	return strings.Join(segs, ":")
}

// TTL returns how long the query result may be served from cache.
func (k Key) TTL() time.Duration {
	if k.Entity == Products && k.Warehouse == GlobalScope && k.View == ViewList {
		return 10 * time.Minute
	}
	if ttl, ok := ttlTable[k.Entity][k.View]; ok {
		return ttl
	}
	return DefaultTTL
}

// Prefix matches every key of entity within one warehouse scope.
func Prefix(entity Entity, scope string) string {
	return string(entity) + ":" + strings.ToLower(scope) + ":"
}

func scopeOf(id uuid.UUID) string {
	if id == uuid.Nil {
		return GlobalScope
	}
	return id.String()
}
