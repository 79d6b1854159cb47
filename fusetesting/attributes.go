// Copyright 2015 Google Inc. All Rights Reserved.
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

package fusetesting

import (
	"fmt"
	"reflect"
	"time"

	"github.com/jacobsa/oglematchers"
	"github.com/juergengeck/one.fuse3/fuseops"
	"github.com/kylelemons/godebug/pretty"
)

func asAttributes(c interface{}) (a fuseops.Attributes, err error) {
	switch typed := c.(type) {
	case fuseops.Attributes:
		a = typed
	case *fuseops.Attributes:
		a = *typed
	default:
		err = fmt.Errorf("which is of type %v", reflect.TypeOf(c))
	}

	return
}

// Match fuseops.Attributes values equal to the given ones, describing any
// difference field by field.
func AttributesEqual(expected fuseops.Attributes) oglematchers.Matcher {
	return oglematchers.NewMatcher(
		func(c interface{}) error { return attributesEqual(c, expected) },
		fmt.Sprintf("attributes equal to %s", pretty.Sprint(expected)))
}

func attributesEqual(c interface{}, expected fuseops.Attributes) error {
	a, err := asAttributes(c)
	if err != nil {
		return err
	}

	if diff := pretty.Compare(expected, a); diff != "" {
		return fmt.Errorf("which differs (-want +got):\n%s", diff)
	}

	return nil
}

// Match fuseops.Attributes values that specify an mtime equal to the given
// time.
func MtimeIs(expected time.Time) oglematchers.Matcher {
	return oglematchers.NewMatcher(
		func(c interface{}) error { return mtimeIs(c, expected) },
		fmt.Sprintf("mtime is %v", expected))
}

func mtimeIs(c interface{}, expected time.Time) error {
	a, err := asAttributes(c)
	if err != nil {
		return err
	}

	if !a.Mtime.Equal(expected) {
		d := a.Mtime.Sub(expected)
		return fmt.Errorf("which has mtime %v, off by %v", a.Mtime, d)
	}

	return nil
}

// Match fuseops.Attributes values of the given file type.
func FiletypeIs(expected fuseops.Filetype) oglematchers.Matcher {
	return oglematchers.NewMatcher(
		func(c interface{}) error {
			a, err := asAttributes(c)
			if err != nil {
				return err
			}

			if a.Filetype() != expected {
				return fmt.Errorf("which is a %v", a.Filetype())
			}

			return nil
		},
		fmt.Sprintf("is a %v", expected))
}
