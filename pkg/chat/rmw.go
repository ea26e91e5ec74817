package chat

import (
	"errors"

	"chatstore/pkg/errs"
	"chatstore/pkg/logger"
	"chatstore/pkg/store"
)

// mutateMapAttr applies fn to a copy of the named mapping attribute and
// writes the row back through a conditional put on the row version.
// Concurrent mutations of the same row retry and compose instead of
// overwriting each other. A missing row starts from the key attributes
// so counters and settings rows spring into existence on first touch.
func (s *Service) mutateMapAttr(table string, key store.Item, attr string, fn func(m map[string]any)) error {
	for attempt := 0; attempt < s.rmwAttempts; attempt++ {
		item, err := s.st.GetItem(table, key)
		if errs.IsNotFound(err) {
			item = store.Item{}
			for k, v := range key {
				item[k] = v
			}
		} else if err != nil {
			return err
		}
		version, _ := store.AsInt64(item[store.VersionAttr])

		m := map[string]any{}
		if cur, ok := item[attr].(map[string]any); ok {
			for k, v := range cur {
				m[k] = v
			}
		}
		fn(m)
		item[attr] = m

		err = s.st.CheckAndPut(table, item, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errs.ErrConflict) {
			return err
		}
		logger.Debug("rmw conflict, retrying", "table", table, "attr", attr, "attempt", attempt+1)
	}
	return errs.Conflict("gave up after repeated version conflicts on " + table + "." + attr)
}

// mutateListAttr is mutateMapAttr for string-list attributes.
func (s *Service) mutateListAttr(table string, key store.Item, attr string, fn func(members []string) []string) error {
	for attempt := 0; attempt < s.rmwAttempts; attempt++ {
		item, err := s.st.GetItem(table, key)
		if errs.IsNotFound(err) {
			item = store.Item{}
			for k, v := range key {
				item[k] = v
			}
		} else if err != nil {
			return err
		}
		version, _ := store.AsInt64(item[store.VersionAttr])

		var members []string
		if cur, ok := item[attr].([]any); ok {
			for _, v := range cur {
				if sv, ok := v.(string); ok {
					members = append(members, sv)
				}
			}
		}
		item[attr] = fn(members)

		err = s.st.CheckAndPut(table, item, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errs.ErrConflict) {
			return err
		}
		logger.Debug("rmw conflict, retrying", "table", table, "attr", attr, "attempt", attempt+1)
	}
	return errs.Conflict("gave up after repeated version conflicts on " + table + "." + attr)
}
