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

// Package extract implements streaming extraction of bibliography records
// from an XML corpus.
//
// A corpus is a single root element whose direct children are records:
//
//	<?xml version="1.0" encoding="ISO-8859-1"?>
//	<!DOCTYPE dblp SYSTEM "dblp.dtd">
//	<dblp>
//	<article key="journals/x/Smith20" mdate="2020-01-01">
//	<author>Alice Smith</author>
//	<title>On <i>X</i></title>
//	<year>2020</year>
//	</article>
//	...
//	</dblp>
//
// The Scanner walks the corpus bytes once and never builds a tree. Field
// values that contain no markup are returned as sub-slices of the corpus.
// Values with inline markup (e.g. <i>, <sub>) have the tags stripped and the
// remaining text concatenated into a scratch buffer owned by the Scanner.
package extract
