// Copyright 2026 The memlayout Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package page defines the Page value object: one VA->PA mapping of a
// fixed size with MMU-relevant attributes. A Page is immutable after
// construction.
package page

import (
	"errors"
	"fmt"

	"github.com/mohae/deepcopy"

	"github.com/szoharbu/memlayout/pkg/memattr"
)

// ErrOutOfRange is returned by VAToPA and PAToVA when the address is not
// contained in the Page.
var ErrOutOfRange = errors.New("page: address not in this page")

// Page is a single VA->PA mapping managed by a page table.
type Page struct {
	VA               uint64
	PA               uint64
	Size             memattr.PageSize
	PageType         memattr.PageType
	Permissions      memattr.Permission
	Cacheable        memattr.Cacheability
	Shareable        memattr.Shareability
	ExecutionContext memattr.ExecutionContext
	CustomAttributes map[string]any
	IsCrossCore      bool
}

// New constructs a Page, copying custom attributes defensively.
func New(va, pa uint64, size memattr.PageSize, pageType memattr.PageType, perms memattr.Permission,
	cacheable memattr.Cacheability, shareable memattr.Shareability, ec memattr.ExecutionContext,
	custom map[string]any, isCrossCore bool) Page {
	return Page{
		VA:               va,
		PA:               pa,
		Size:             size,
		PageType:         pageType,
		Permissions:      perms,
		Cacheable:        cacheable,
		Shareable:        shareable,
		ExecutionContext: ec,
		CustomAttributes: cloneAttrs(custom),
		IsCrossCore:      isCrossCore,
	}
}

func cloneAttrs(m map[string]any) map[string]any {
	if len(m) == 0 {
		return map[string]any{}
	}
	return deepcopy.Copy(m).(map[string]any)
}

// IsReadable reports whether p grants read access.
func (p Page) IsReadable() bool { return p.Permissions&memattr.PermRead != 0 }

// IsWritable reports whether p grants write access.
func (p Page) IsWritable() bool { return p.Permissions&memattr.PermWrite != 0 }

// IsExecutable reports whether p grants execute access.
func (p Page) IsExecutable() bool { return p.Permissions&memattr.PermExecute != 0 }

// EndVA returns the address of the last byte covered by p.
func (p Page) EndVA() uint64 { return p.VA + uint64(p.Size) - 1 }

// EndPA returns the address of the last byte covered by p.
func (p Page) EndPA() uint64 { return p.PA + uint64(p.Size) - 1 }

// ContainsVA reports whether addr falls within p's virtual range.
func (p Page) ContainsVA(addr uint64) bool { return p.VA <= addr && addr <= p.EndVA() }

// ContainsPA reports whether addr falls within p's physical range.
func (p Page) ContainsPA(addr uint64) bool { return p.PA <= addr && addr <= p.EndPA() }

// VAToPA translates a virtual address within p to its physical address.
func (p Page) VAToPA(va uint64) (uint64, error) {
	if !p.ContainsVA(va) {
		return 0, fmt.Errorf("%w: va 0x%x", ErrOutOfRange, va)
	}
	return p.PA + (va - p.VA), nil
}

// PAToVA translates a physical address within p to its virtual address.
func (p Page) PAToVA(pa uint64) (uint64, error) {
	if !p.ContainsPA(pa) {
		return 0, fmt.Errorf("%w: pa 0x%x", ErrOutOfRange, pa)
	}
	return p.VA + (pa - p.PA), nil
}

// AttributesDict returns a snapshot of every attribute of p, keyed the
// way downstream emitters expect (mirrors the source's
// get_attributes_dict).
func (p Page) AttributesDict() map[string]any {
	out := map[string]any{
		"type": p.PageType.String(),
		"permissions": map[string]bool{
			"read":    p.IsReadable(),
			"write":   p.IsWritable(),
			"execute": p.IsExecutable(),
		},
		"cacheable":         p.Cacheable.String(),
		"shareable":         p.Shareable.String(),
		"execution_context": p.ExecutionContext.String(),
	}
	for k, v := range p.CustomAttributes {
		out[k] = v
	}
	return out
}

// MMU descriptor attribute bits. These illustrate one ARM-style packing
// of a Page's attributes into a single word; they are not a wire-format
// page-table descriptor.
const (
	mmuAttrAP0   = 0x1
	mmuAttrAP1   = 0x2
	mmuAttrXN    = 0x4
	mmuAttrMemWB = 0x8
	mmuAttrMemWT = 0x10
	mmuAttrShInn = 0x20
	mmuAttrShOut = 0x40
)

// GetMMUAttributes packs p's permission, cacheability, and shareability
// into a single illustrative ARM-style attribute word.
func (p Page) GetMMUAttributes() uint64 {
	var attr uint64
	if p.IsReadable() {
		attr |= mmuAttrAP0
	}
	if p.IsWritable() {
		attr |= mmuAttrAP1
	}
	if !p.IsExecutable() {
		attr |= mmuAttrXN
	}
	switch p.Cacheable {
	case memattr.CacheWriteBack:
		attr |= mmuAttrMemWB
	case memattr.CacheWriteThrough:
		attr |= mmuAttrMemWT
	}
	switch p.Shareable {
	case memattr.ShareInner:
		attr |= mmuAttrShInn
	case memattr.ShareOuter:
		attr |= mmuAttrShOut
	}
	return attr
}

func (p Page) String() string {
	var perms string
	if p.IsReadable() {
		perms += "R"
	}
	if p.IsWritable() {
		perms += "W"
	}
	if p.IsExecutable() {
		perms += "X"
	}
	return fmt.Sprintf("Page(VA:0x%x-0x%x, PA:0x%x-0x%x, Size:%s, %s, %s, %s, cross_core:%v, va_eq_pa:%v)",
		p.VA, p.EndVA(), p.PA, p.EndPA(), p.Size, p.PageType, perms, p.Cacheable, p.IsCrossCore, p.VA == p.PA)
}
