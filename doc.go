// Copyright 2026 Ian Lewis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bibindex indexes large XML bibliographic corpora, such as the dblp
// dump, for lookup by author name and by title.
//
// A corpus is a single XML document whose root element contains one element
// per record:
//
//	<dblp>
//	<article key="journals/x/Smith20" mdate="2020-01-01">
//	<author>Alice Smith</author>
//	<title>X</title>
//	<year>2020</year>
//	</article>
//	...
//	</dblp>
//
// [Engine.Build] scans the corpus once in the background and builds sorted
// author and title indexes whose keys refer to the corpus bytes in place.
// Lookups are exact matches by binary search and return record positions,
// the byte offsets of record start tags. [Engine.Materialize] decodes the
// record at a position on demand.
//
// Built indexes are saved to a directory and reused by [Engine.Open] until
// the corpus file changes.
package bibindex
