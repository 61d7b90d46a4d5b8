// Package api holds the JSON contract between the digest builder and the
// static page renderer that consumes its output.
//
// # Layout
//
// - dto/responses: the artifact document written after every run
// - dto/mappers: conversion from pipeline results to the artifact
//
// # Artifact
//
// One run produces one document:
//
//	{
//	    "run_id": "0b6d0c1e-...",
//	    "generated_at": "2024-03-31T12:00:00Z",
//	    "feeds": [
//	        {
//	            "key": "https://example.com/feed.xml",
//	            "title": "Example",
//	            "category": "tech",
//	            "entries": [{"title": "...", "link": "...", "published": "..."}]
//	        },
//	        {"key": "group:comics", "is_group": true, "members": ["..."]}
//	    ],
//	    "errors": [{"url": "https://broken.example/rss", "error": "...", "code": "network"}]
//	}
//
// Standalone feeds come first in declaration order, followed by groups.
// Entry times are in the configured display timezone.
package api
