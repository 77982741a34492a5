// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

package script

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/beevik/etree"
)

// Codec reads and writes script documents. The production codec speaks
// the on-disk XML format; tests may substitute an in-memory one.
type Codec interface {
	Read(path string) (Script, error)
	Write(path string, s Script) error
}

// XMLCodec maps the object tree onto XML. Scalars carry a kind attribute
// when they are not strings, repeated sibling elements encode lists, and
// keys that are not valid XML names are wrapped in a key element with a
// name attribute.
//
// Two shapes are not preserved exactly: a single-element list decodes
// back as its lone element, and an empty object decodes as "". Consumers
// of the tree accept both shapes, so scripts stay semantically intact
// across a round trip.
type XMLCodec struct{}

// NewXMLCodec returns the on-disk codec.
func NewXMLCodec() *XMLCodec {
	return &XMLCodec{}
}

// Read parses the document at path.
func (c *XMLCodec) Read(path string) (Script, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != Root {
		return nil, ErrNoRoot
	}
	s := Script{Root: decodeElement(root)}
	return s, nil
}

// Write serializes the document to path, replacing any previous content.
func (c *XMLCodec) Write(path string, s Script) error {
	body := s.Body()
	if body == nil {
		return ErrNoRoot
	}
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(Root)
	encodeInto(root, body)
	doc.Indent(2)
	if err := doc.WriteToFile(path); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	return nil
}

func encodeInto(parent *etree.Element, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		encodeValue(parent, k, m[k])
	}
}

func encodeValue(parent *etree.Element, key string, value any) {
	if list, ok := value.([]any); ok {
		for _, item := range list {
			encodeValue(parent, key, item)
		}
		return
	}

	el := parent.CreateElement(elementTag(key))
	if el.Tag == wrapTag {
		el.CreateAttr("name", key)
	}

	switch v := value.(type) {
	case map[string]any:
		encodeInto(el, v)
	case string:
		el.SetText(v)
	case bool:
		el.CreateAttr(kindAttr, "bool")
		el.SetText(strconv.FormatBool(v))
	case float64:
		el.CreateAttr(kindAttr, "number")
		el.SetText(strconv.FormatFloat(v, 'g', -1, 64))
	case int:
		el.CreateAttr(kindAttr, "number")
		el.SetText(strconv.Itoa(v))
	case int64:
		el.CreateAttr(kindAttr, "number")
		el.SetText(strconv.FormatInt(v, 10))
	case nil:
		el.CreateAttr(kindAttr, "null")
	default:
		el.SetText(fmt.Sprint(v))
	}
}

func decodeElement(el *etree.Element) map[string]any {
	m := make(map[string]any)
	for _, child := range el.ChildElements() {
		key := childKey(child)
		decoded := decodeValue(child)
		switch prev := m[key].(type) {
		case nil:
			m[key] = decoded
		case []any:
			m[key] = append(prev, decoded)
		default:
			m[key] = []any{prev, decoded}
		}
	}
	return m
}

func decodeValue(el *etree.Element) any {
	if len(el.ChildElements()) > 0 {
		return decodeElement(el)
	}
	text := el.Text()
	switch el.SelectAttrValue(kindAttr, "") {
	case "null":
		return nil
	case "bool":
		b, _ := strconv.ParseBool(text)
		return b
	case "number":
		f, _ := strconv.ParseFloat(text, 64)
		return f
	default:
		return text
	}
}

const (
	kindAttr = "kind"
	wrapTag  = "key"
)

func childKey(el *etree.Element) string {
	if el.Tag == wrapTag {
		if name := el.SelectAttrValue("name", ""); name != "" {
			return name
		}
	}
	return el.Tag
}

// elementTag returns key as-is when it is a usable XML name, otherwise
// the wrap tag.
func elementTag(key string) string {
	if key == "" || key == wrapTag {
		return wrapTag
	}
	for i, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9', r == '-', r == '.':
			if i == 0 {
				return wrapTag
			}
		default:
			return wrapTag
		}
	}
	return key
}
