package mcpserver

// DocumentFormatContract describes the canonical block-tree document format
// that LLM consumers should follow when reading or producing article content.
const DocumentFormatContract = `# Hone Document Format Contract

Every article is a JSON document tree: a flat, ordered list of blocks.

## Structure

` + "```" + `json
{
  "blocks": [
    {"type": "article-title", "children": [{"text": "My Article"}]},
    {"type": "facet-title", "facet": {"facetId": "my-article-facet-1700000000000", "active": true},
     "children": [{"text": "$Topic heading"}]},
    {"type": "paragraph", "children": [{"text": "Body text of the facet."}]}
  ]
}
` + "```" + `

## Rules

1. **The first block is always the article title.** Any other kind placed
   first is coerced to ` + "`" + `article-title` + "`" + ` on save and loses any facet identity.
2. **Facet titles start with the ` + "`" + `$` + "`" + ` marker.** A paragraph whose text begins
   with ` + "`" + `$` + "`" + ` becomes a facet title on save, minting a facet id of the form
   ` + "`" + `{articleId}-facet-{timestampMillis}` + "`" + `.
3. **Facets may be active or inactive.** Only active facet titles group the
   blocks after them into a facet; inactive titles read as ordinary content.
   Toggling activity never changes the facet id.
4. **A facet title with no text decays to a paragraph** and its identity is
   gone for good.
5. **A facet's content** is every block after its title up to the next active
   facet title or the end of the document.
6. **Saving a tree with no text at all deletes the article.**
7. **Honed content** is spliced in as paragraphs bracketed by ` + "`" + `---` + "`" + `
   delimiter lines, with a ` + "`" + `Honed from: <title>` + "`" + ` attribution line first.
`
