package extractor

// SortList stably merge sorts the singly linked list starting at head and
// returns the new head. next returns the address of an element's link
// field. Runs in O(n log n) without allocating.
func SortList[T any](head *T, next func(*T) **T, cmp func(a, b *T) int) *T {
	if head == nil {
		return nil
	}

	for insize := 1; ; insize *= 2 {
		p := head
		head = nil
		var tail *T
		merges := 0

		for p != nil {
			merges++

			// Step q insize places along from p.
			q := p
			psize := 0
			for i := 0; i < insize && q != nil; i++ {
				psize++
				q = *next(q)
			}
			qsize := insize

			for psize > 0 || (qsize > 0 && q != nil) {
				var e *T
				switch {
				case psize == 0:
					e, q = q, *next(q)
					qsize--
				case qsize == 0 || q == nil:
					e, p = p, *next(p)
					psize--
				case cmp(p, q) <= 0:
					e, p = p, *next(p)
					psize--
				default:
					e, q = q, *next(q)
					qsize--
				}

				if tail != nil {
					*next(tail) = e
				} else {
					head = e
				}
				tail = e
			}
			p = q
		}
		*next(tail) = nil

		if merges <= 1 {
			return head
		}
	}
}

func runNext(run *BlockRun) **BlockRun {
	return &run.next
}

func byPhysicalBlock(a, b *BlockRun) int {
	switch {
	case a.physical < b.physical:
		return -1
	case a.physical > b.physical:
		return 1
	}
	return 0
}

// fileNode queues files waiting for admission.
type fileNode struct {
	entry *FileEntry
	next  *fileNode
}

func fileNext(node *fileNode) **fileNode {
	return &node.next
}

// Object ids are unsigned so never subtract them.
func byObjectId(a, b *fileNode) int {
	switch {
	case a.entry.Id < b.entry.Id:
		return -1
	case a.entry.Id > b.entry.Id:
		return 1
	}
	return 0
}

func sortFiles(files []*FileEntry) *fileNode {
	var head, tail *fileNode
	for _, entry := range files {
		node := &fileNode{entry: entry}
		if tail == nil {
			head = node
		} else {
			tail.next = node
		}
		tail = node
	}
	return SortList(head, fileNext, byObjectId)
}
