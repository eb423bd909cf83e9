package tree

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/starford/spendscope/internal/models"
)

const (
	uncategorized = "Uncategorized"
	unassigned    = "Unassigned"
)

// ExpenseNodes lays out category totals as root -> year -> month -> category.
// Ids follow the "2025", "2025-1", "2025-1-Food" convention; rows are ordered
// by year and month, keeping input order within a month. Each category node
// carries its amount and every ancestor carries the sum of its subtree.
func ExpenseNodes(rows []models.CategoryMonthAmount, rootName string) []FlatNode {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b models.CategoryMonthAmount) int {
		if c := cmp.Compare(a.Year, b.Year); c != 0 {
			return c
		}
		return cmp.Compare(a.Month, b.Month)
	})

	out := []FlatNode{{ID: RootID, Name: rootName, Value: decimal.NewNullDecimal(decimal.Zero)}}
	index := map[string]int{RootID: 0}
	add := func(n FlatNode, amount decimal.Decimal) {
		i, ok := index[n.ID]
		if !ok {
			i = len(out)
			index[n.ID] = i
			n.Value = decimal.NewNullDecimal(decimal.Zero)
			out = append(out, n)
		}
		out[i].Value.Decimal = out[i].Value.Decimal.Add(amount)
	}

	for _, r := range sorted {
		yearID := strconv.Itoa(r.Year)
		monthID := yearID + "-" + strconv.Itoa(r.Month)
		category := strings.TrimSpace(r.Category)
		if category == "" {
			category = uncategorized
		}
		add(FlatNode{ID: RootID}, r.Amount)
		add(FlatNode{ID: yearID, Parent: RootID, Name: yearID}, r.Amount)
		add(FlatNode{ID: monthID, Parent: yearID, Name: monthName(r.Month)}, r.Amount)
		add(FlatNode{ID: monthID + "-" + category, Parent: monthID, Name: category}, r.Amount)
	}
	return out
}

// EmployeeNodes lays out employees as root -> department -> reports. An
// employee hangs under its manager when the manager is known, otherwise under
// its department. Employees on a reporting loop hang under their department.
func EmployeeNodes(rows []models.Employee, rootName string) []FlatNode {
	out := []FlatNode{{ID: RootID, Name: rootName}}

	managers := make(map[string]string, len(rows))
	for _, e := range rows {
		managers[e.ID] = e.ManagerID
	}

	depts := make(map[string]struct{})
	for _, e := range rows {
		dept := departmentName(e.Department)
		if _, ok := depts[dept]; ok {
			continue
		}
		depts[dept] = struct{}{}
		out = append(out, FlatNode{ID: departmentID(dept), Parent: RootID, Name: dept})
	}

	for _, e := range rows {
		parent := departmentID(departmentName(e.Department))
		if _, ok := managers[e.ManagerID]; ok && e.ManagerID != "" && !reportsToSelf(e.ID, managers) {
			parent = employeeID(e.ManagerID)
		}
		out = append(out, FlatNode{ID: employeeID(e.ID), Parent: parent, Name: e.Name})
	}
	return out
}

// reportsToSelf reports whether following id's managers leads back to id.
func reportsToSelf(id string, managers map[string]string) bool {
	seen := map[string]struct{}{}
	cur := managers[id]
	for cur != "" {
		if cur == id {
			return true
		}
		if _, ok := seen[cur]; ok {
			return false
		}
		seen[cur] = struct{}{}
		next, ok := managers[cur]
		if !ok {
			return false
		}
		cur = next
	}
	return false
}

func monthName(m int) string {
	if m < 1 || m > 12 {
		return strconv.Itoa(m)
	}
	return time.Month(m).String()[:3]
}

func departmentName(d string) string {
	d = strings.TrimSpace(d)
	if d == "" {
		return unassigned
	}
	return d
}

func departmentID(dept string) string { return "dept:" + dept }

func employeeID(id string) string { return "emp:" + id }
